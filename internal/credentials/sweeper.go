package credentials

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rapzz3312/waconsole/internal/logging"
)

// Sweeper removes credential files that have not been touched within the TTL.
// Sessions that are alive keep rewriting their blobs on credential churn, so
// only abandoned pairings age out.
type Sweeper struct {
	root     string
	ttl      time.Duration
	interval time.Duration
	logger   logging.Logger
}

// NewSweeper creates a sweeper over the same root directory as the FileStore.
func NewSweeper(root string, ttl, interval time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{
		root:     filepath.Clean(root),
		ttl:      ttl,
		interval: interval,
		logger:   logging.OrNop(logger),
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := s.SweepOnce(time.Now())
			if removed > 0 {
				s.logger.Info("Swept %d stale credential file(s)", removed)
			}
		}
	}
}

// SweepOnce removes stale credential files relative to now and returns how
// many were deleted.
func (s *Sweeper) SweepOnce(now time.Time) int {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Credential sweep failed to read %s: %v", s.root, err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), credFileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < s.ttl {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("Credential sweep failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}
