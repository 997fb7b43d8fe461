// File: internal/device/uitree.go
package device

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// ParseUITree converts a uiautomator XML dump into the canonical node tree.
// The dump's root element is <hierarchy> wrapping a single window node; we
// return that window node so the tree starts at real content.
func ParseUITree(raw []byte) (*schemas.UINode, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("malformed hierarchy xml: %w", err)
	}

	root := doc.SelectElement("hierarchy")
	if root == nil {
		return nil, fmt.Errorf("hierarchy element missing")
	}

	children := root.SelectElements("node")
	switch len(children) {
	case 0:
		return nil, fmt.Errorf("hierarchy contains no nodes")
	case 1:
		return convertNode(children[0]), nil
	default:
		// Multiple top-level windows (e.g. an open dialog); wrap them so the
		// tree stays single-rooted.
		wrapper := &schemas.UINode{Role: "window-group"}
		for _, c := range children {
			wrapper.Children = append(wrapper.Children, convertNode(c))
		}
		return wrapper, nil
	}
}

func convertNode(el *etree.Element) *schemas.UINode {
	n := &schemas.UINode{
		Role:       el.SelectAttrValue("class", ""),
		Text:       el.SelectAttrValue("text", ""),
		ResourceID: el.SelectAttrValue("resource-id", ""),
		Clickable:  el.SelectAttrValue("clickable", "false") == "true",
		Bounds:     parseBounds(el.SelectAttrValue("bounds", "")),
	}
	if n.Text == "" {
		// Accessibility descriptions stand in for text on icon-only elements.
		n.Text = el.SelectAttrValue("content-desc", "")
	}
	for _, c := range el.SelectElements("node") {
		n.Children = append(n.Children, convertNode(c))
	}
	return n
}

// parseBounds reads the uiautomator "[left,top][right,bottom]" format.
// Malformed input yields the zero rectangle rather than an error; a single
// bad attribute should not discard an otherwise usable dump.
func parseBounds(s string) schemas.Bounds {
	var b schemas.Bounds
	s = strings.TrimSpace(s)
	if _, err := fmt.Sscanf(s, "[%d,%d][%d,%d]", &b.Left, &b.Top, &b.Right, &b.Bottom); err != nil {
		return schemas.Bounds{}
	}
	return b
}
