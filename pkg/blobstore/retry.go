package blobstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bahamut/pkg/metrics"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls the exponential backoff of Retrying.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	Multiplier      float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 5 * time.Second,
		Multiplier:      3,
	}
}

// Retrying retries the operations of the wrapped Store. A missing blob is
// never retried.
type Retrying struct {
	store  Store
	config RetryConfig
}

func NewRetrying(store Store, config RetryConfig) *Retrying {
	return &Retrying{store: store, config: config}
}

func (r *Retrying) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.retry(ctx, OpGet, name, func() error {
		var err error
		data, err = r.store.Get(ctx, name)
		return err
	})
	return data, err
}

func (r *Retrying) Put(ctx context.Context, name string, data []byte) error {
	return r.retry(ctx, OpPut, name, func() error {
		return r.store.Put(ctx, name, data)
	})
}

func (r *Retrying) Copy(ctx context.Context, name, destBucket, destName string) error {
	return r.retry(ctx, OpCopy, name, func() error {
		return r.store.Copy(ctx, name, destBucket, destName)
	})
}

func (r *Retrying) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialInterval
	b.Multiplier = r.config.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, r.config.MaxRetries), ctx)
}

func (r *Retrying) retry(ctx context.Context, op, name string, fn func() error) error {
	operation := func() error {
		err := fn()
		if errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.RecordBlobRetry(ctx, op)
		slog.Warn("Blob operation failed, retrying",
			"operation", op,
			"name", name,
			"wait", wait,
			"error", err,
		)
	}
	return backoff.RetryNotify(operation, r.newBackOff(ctx), notify)
}
