package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

const sampleDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node class="android.widget.FrameLayout" bounds="[0,0][1080,1920]" clickable="false" text="">
    <node class="android.widget.TextView" resource-id="com.android.settings:id/title" text="Settings" bounds="[40,120][400,180]" clickable="false"/>
    <node class="android.widget.Switch" resource-id="com.android.settings:id/airplane" text="" content-desc="Airplane mode" bounds="[900,300][1040,380]" clickable="true"/>
  </node>
</hierarchy>`

func TestParseUITree(t *testing.T) {
	tree, err := ParseUITree([]byte(sampleDump))
	require.NoError(t, err)

	assert.Equal(t, "android.widget.FrameLayout", tree.Role)
	require.Len(t, tree.Children, 2)

	title := tree.Children[0]
	assert.Equal(t, "Settings", title.Text)
	assert.Equal(t, "com.android.settings:id/title", title.ResourceID)
	assert.False(t, title.Clickable)
	assert.Equal(t, schemas.Bounds{Left: 40, Top: 120, Right: 400, Bottom: 180}, title.Bounds)

	toggle := tree.Children[1]
	assert.True(t, toggle.Clickable)
	assert.Equal(t, "Airplane mode", toggle.Text, "content-desc stands in for empty text")

	x, y := toggle.Bounds.Center()
	assert.Equal(t, 970, x)
	assert.Equal(t, 340, y)
}

func TestParseUITreeMultipleWindows(t *testing.T) {
	dump := `<hierarchy>
  <node class="android.widget.FrameLayout" bounds="[0,0][1080,1920]"/>
  <node class="android.widget.FrameLayout" bounds="[100,600][980,1300]"/>
</hierarchy>`

	tree, err := ParseUITree([]byte(dump))
	require.NoError(t, err)
	assert.Equal(t, "window-group", tree.Role)
	assert.Len(t, tree.Children, 2)
}

func TestParseUITreeErrors(t *testing.T) {
	_, err := ParseUITree([]byte("not xml at all <"))
	assert.Error(t, err)

	_, err = ParseUITree([]byte("<dump></dump>"))
	assert.Error(t, err, "missing hierarchy element")

	_, err = ParseUITree([]byte("<hierarchy></hierarchy>"))
	assert.Error(t, err, "empty hierarchy")
}

func TestParseBoundsMalformed(t *testing.T) {
	assert.Equal(t, schemas.Bounds{}, parseBounds("nonsense"))
	assert.Equal(t, schemas.Bounds{}, parseBounds(""))
}

func TestExtractText(t *testing.T) {
	tree, err := ParseUITree([]byte(sampleDump))
	require.NoError(t, err)

	text := schemas.ExtractText(tree)
	assert.Equal(t, "Settings\nAirplane mode", text)
}
