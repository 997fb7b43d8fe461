package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
	"github.com/vatsal-bst/bluestacksmcp/internal/config"
)

// MockDriver is a testify mock for schemas.DeviceDriver.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var out []byte
	if raw := args.Get(0); raw != nil {
		out = raw.([]byte)
	}
	return out, args.Error(1)
}

func (m *MockDriver) CaptureUITree(ctx context.Context) (*schemas.UINode, error) {
	args := m.Called(ctx)
	var tree *schemas.UINode
	if raw := args.Get(0); raw != nil {
		tree = raw.(*schemas.UINode)
	}
	return tree, args.Error(1)
}

func (m *MockDriver) PerformAction(ctx context.Context, spec schemas.ActionSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) ReadLogs(ctx context.Context, lines int) ([]string, error) {
	args := m.Called(ctx, lines)
	var out []string
	if raw := args.Get(0); raw != nil {
		out = raw.([]string)
	}
	return out, args.Error(1)
}

func testBuilderConfig(artifactDir string) config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Device.ArtifactDir = artifactDir
	cfg.Engine.CaptureTimeout = 2 * time.Second
	return *cfg
}

func sampleTree() *schemas.UINode {
	return &schemas.UINode{
		Role: "android.widget.FrameLayout",
		Children: []*schemas.UINode{
			{Role: "android.widget.TextView", Text: "Home"},
		},
	}
}

func TestCaptureHappyPath(t *testing.T) {
	dir := t.TempDir()
	driver := new(MockDriver)
	driver.On("CaptureScreenshot", mock.Anything).Return([]byte("png-bytes"), nil).Once()
	driver.On("CaptureUITree", mock.Anything).Return(sampleTree(), nil).Once()

	b := NewBuilder(driver, testBuilderConfig(dir), zap.NewNop())
	snap, err := b.Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), snap.Seq)
	assert.Len(t, snap.ScreenshotHash, 64)
	assert.Equal(t, "Home", snap.TextExtract)
	assert.Equal(t, filepath.Join(dir, "frame-000001.png"), snap.ScreenshotRef)

	written, err := os.ReadFile(snap.ScreenshotRef)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), written)
	driver.AssertExpectations(t)
}

func TestCaptureSequenceIncrements(t *testing.T) {
	driver := new(MockDriver)
	driver.On("CaptureScreenshot", mock.Anything).Return([]byte("png"), nil).Twice()
	driver.On("CaptureUITree", mock.Anything).Return(sampleTree(), nil).Twice()

	b := NewBuilder(driver, testBuilderConfig(""), zap.NewNop())

	first, err := b.Capture(context.Background())
	require.NoError(t, err)
	second, err := b.Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Empty(t, first.ScreenshotRef, "no artifact dir configured")
}

func TestCaptureAllOrNothing(t *testing.T) {
	t.Run("screenshot failure", func(t *testing.T) {
		driver := new(MockDriver)
		driver.On("CaptureScreenshot", mock.Anything).Return(nil, errors.New("bridge down")).Once()
		driver.On("CaptureUITree", mock.Anything).Return(sampleTree(), nil).Maybe()

		b := NewBuilder(driver, testBuilderConfig(""), zap.NewNop())
		_, err := b.Capture(context.Background())
		assert.ErrorIs(t, err, schemas.ErrCaptureFailed)
	})

	t.Run("ui tree failure", func(t *testing.T) {
		driver := new(MockDriver)
		driver.On("CaptureScreenshot", mock.Anything).Return([]byte("png"), nil).Maybe()
		driver.On("CaptureUITree", mock.Anything).Return(nil, errors.New("dump failed")).Once()

		b := NewBuilder(driver, testBuilderConfig(""), zap.NewNop())
		_, err := b.Capture(context.Background())
		assert.ErrorIs(t, err, schemas.ErrCaptureFailed)
	})
}
