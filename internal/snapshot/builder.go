// File: internal/snapshot/builder.go
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
	"github.com/vatsal-bst/bluestacksmcp/internal/config"
)

// Builder produces scene snapshots by capturing the screenshot and the UI
// hierarchy together. A snapshot is all-or-nothing: if either capture fails
// the whole attempt fails and nothing is persisted.
type Builder struct {
	driver      schemas.DeviceDriver
	artifactDir string
	timeout     time.Duration
	seq         atomic.Int64
	logger      *zap.Logger
}

// NewBuilder wires a builder to a device driver. When artifactDir is empty,
// screenshots are hashed but not written to disk.
func NewBuilder(driver schemas.DeviceDriver, cfg config.Config, logger *zap.Logger) *Builder {
	return &Builder{
		driver:      driver,
		artifactDir: cfg.Device.ArtifactDir,
		timeout:     cfg.Engine.CaptureTimeout,
		logger:      logger.Named("snapshot"),
	}
}

// Capture performs one snapshot attempt. Screenshot and UI tree are fetched
// concurrently; both must succeed within the capture timeout.
func (b *Builder) Capture(ctx context.Context) (*schemas.SceneSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var (
		screenshot []byte
		tree       *schemas.UINode
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		screenshot, err = b.driver.CaptureScreenshot(gctx)
		if err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tree, err = b.driver.CaptureUITree(gctx)
		if err != nil {
			return fmt.Errorf("ui tree: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", schemas.ErrCaptureFailed, err)
	}

	seq := b.seq.Add(1)
	sum := sha256.Sum256(screenshot)
	hash := hex.EncodeToString(sum[:])

	ref, err := b.persistScreenshot(seq, screenshot)
	if err != nil {
		// Losing the artifact is tolerable; the hash still identifies the
		// frame for change detection.
		b.logger.Warn("failed to persist screenshot artifact", zap.Error(err))
	}

	snap := &schemas.SceneSnapshot{
		Seq:            seq,
		Timestamp:      time.Now().UTC(),
		ScreenshotRef:  ref,
		ScreenshotHash: hash,
		UITree:         tree,
		TextExtract:    schemas.ExtractText(tree),
	}
	b.logger.Debug("captured snapshot",
		zap.Int64("seq", seq),
		zap.String("hash", hash[:12]),
	)
	return snap, nil
}

func (b *Builder) persistScreenshot(seq int64, data []byte) (string, error) {
	if b.artifactDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(b.artifactDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(b.artifactDir, fmt.Sprintf("frame-%06d.png", seq))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
