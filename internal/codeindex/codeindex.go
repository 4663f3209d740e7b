// Package codeindex keeps a bloom filter of every issued coupon code so that
// lookups of codes that were never issued skip the cache and the database.
package codeindex

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	DefaultCapacity = 1_000_000
	DefaultFPR      = 0.001
)

// CodeLister is the slice of the coupon repository needed for warmup.
type CodeLister interface {
	ListCodes(ctx context.Context) ([]string, error)
}

// Index answers "might this code exist". Until Warm succeeds every code
// might exist.
type Index struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	warm   bool
	logger *slog.Logger
}

func New(capacity uint, fpr float64, logger *slog.Logger) *Index {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if fpr <= 0 || fpr >= 1 {
		fpr = DefaultFPR
	}
	return &Index{
		filter: bloom.NewWithEstimates(capacity, fpr),
		logger: logger,
	}
}

// Warm loads all stored codes. Codes added concurrently through Add are kept.
func (i *Index) Warm(ctx context.Context, src CodeLister) error {
	codes, err := src.ListCodes(ctx)
	if err != nil {
		return fmt.Errorf("warm code index: %w", err)
	}

	i.mu.Lock()
	for _, code := range codes {
		i.filter.AddString(code)
	}
	i.warm = true
	i.mu.Unlock()

	i.logger.InfoContext(ctx, "coupon code index warmed", slog.Int("codes", len(codes)))
	return nil
}

// Refresh re-runs Warm every interval until ctx is canceled, so codes
// issued by other replicas become visible here. The first load happens
// immediately. Failures are logged and retried on the next tick.
func (i *Index) Refresh(ctx context.Context, src CodeLister, interval time.Duration) {
	if err := i.Warm(ctx, src); err != nil && ctx.Err() == nil {
		i.logger.ErrorContext(ctx, "code index warmup failed", slog.String("error", err.Error()))
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := i.Warm(ctx, src); err != nil && ctx.Err() == nil {
				i.logger.WarnContext(ctx, "code index refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Add registers a newly issued code.
func (i *Index) Add(code string) {
	i.mu.Lock()
	i.filter.AddString(code)
	i.mu.Unlock()
}

// MayContain reports false only when code was definitely never issued.
func (i *Index) MayContain(code string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if !i.warm {
		return true
	}
	return i.filter.TestString(code)
}

// Warmed reports whether Warm has completed.
func (i *Index) Warmed() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.warm
}
