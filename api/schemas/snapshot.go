package schemas

import (
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// UINode is one element of the on-screen hierarchy. Children preserve the
// order reported by the accessibility dump.
type UINode struct {
	Role       string    `json:"role"`
	Text       string    `json:"text,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
	Bounds     Bounds    `json:"bounds"`
	Clickable  bool      `json:"clickable,omitempty"`
	Children   []*UINode `json:"children,omitempty"`
}

// Bounds is the screen rectangle occupied by a UI element, in pixels.
type Bounds struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Center returns the midpoint of the rectangle, the natural tap target.
func (b Bounds) Center() (x, y int) {
	return (b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2
}

// SceneSnapshot is the canonical, comparable capture of on-device state at one
// instant. Immutable once created. Seq is monotonically increasing within a
// session and distinguishes otherwise identical captures.
type SceneSnapshot struct {
	Seq            int64     `json:"seq"`
	Timestamp      time.Time `json:"timestamp"`
	ScreenshotRef  string    `json:"screenshot_ref"`
	ScreenshotHash string    `json:"screenshot_hash"`
	UITree         *UINode   `json:"ui_tree"`
	TextExtract    string    `json:"text_extract"`
}

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// SerializeTree returns the canonical JSON form of the UI tree. Two snapshots
// of an unchanged screen serialize to identical bytes, which is what the
// orchestrator's stall detection compares.
func (s *SceneSnapshot) SerializeTree() string {
	if s == nil || s.UITree == nil {
		return ""
	}
	out, err := snapshotJSON.MarshalToString(s.UITree)
	if err != nil {
		return ""
	}
	return out
}

// ExtractText walks the tree depth-first and concatenates visible element
// text, one fragment per line. Used as the human-readable scene summary and as
// the input to report failure diffs.
func ExtractText(root *UINode) string {
	if root == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(n *UINode)
	walk = func(n *UINode) {
		if t := strings.TrimSpace(n.Text); t != "" {
			sb.WriteString(t)
			sb.WriteByte('\n')
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return strings.TrimRight(sb.String(), "\n")
}
