package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"bahamut/pkg/metrics"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Store reads and writes named blobs in a bucket.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	// Copy copies a blob of this store's bucket to destName in destBucket.
	Copy(ctx context.Context, name, destBucket, destName string) error
}

// Operation names used in spans and metrics.
const (
	OpGet  = "get"
	OpPut  = "put"
	OpCopy = "copy"
)

// cleanName rejects names that would escape the bucket.
func cleanName(name string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(name))[1:]
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return cleaned, nil
}

func observe(ctx context.Context, backend, op string, start time.Time, err error) {
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.RecordBlobOperation(ctx, backend, op, status, time.Since(start))
}
