package main

import (
	"context"
	"sync"
	"time"

	"jobchat/internal/constants"
	"jobchat/internal/models"

	"github.com/sirupsen/logrus"
)

type fileCleaner interface {
	CleanupOldFiles(maxAge time.Duration) (int, error)
}

type draftCleaner interface {
	CleanupOldDrafts(ctx context.Context, maxAge time.Duration) (int64, error)
}

// cleaner periodically prunes the document cache and stale drafts
type cleaner struct {
	files    fileCleaner
	drafts   draftCleaner
	interval time.Duration
	draftAge time.Duration
	logger   *logrus.Logger

	mu     sync.Mutex
	maxAge time.Duration
}

// newCleaner builds a cleaner; drafts may be nil when state is kept in memory
func newCleaner(files fileCleaner, drafts draftCleaner, cfg models.MediaConfig, logger *logrus.Logger) *cleaner {
	return &cleaner{
		files:    files,
		drafts:   drafts,
		interval: time.Duration(constants.DefaultCleanupIntervalMin) * time.Minute,
		draftAge: time.Duration(constants.DefaultDraftMaxAgeDays) * 24 * time.Hour,
		logger:   logger,
		maxAge:   time.Duration(cfg.CacheMaxAgeHours) * time.Hour,
	}
}

func (c *cleaner) SetMaxAge(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxAge = d
}

func (c *cleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

func (c *cleaner) runOnce(ctx context.Context) {
	c.mu.Lock()
	maxAge := c.maxAge
	c.mu.Unlock()

	if c.files != nil {
		removed, err := c.files.CleanupOldFiles(maxAge)
		if err != nil {
			c.logger.WithError(err).Warn("Document cache cleanup failed")
		} else if removed > 0 {
			c.logger.WithField("count", removed).Info("Removed old cached documents")
		}
	}

	if c.drafts != nil {
		removed, err := c.drafts.CleanupOldDrafts(ctx, c.draftAge)
		if err != nil {
			c.logger.WithError(err).Warn("Draft cleanup failed")
		} else if removed > 0 {
			c.logger.WithField("count", removed).Info("Removed stale drafts")
		}
	}
}
