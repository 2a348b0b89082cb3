package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const backendLocal = "local"

// LocalDisk stores blobs as files below root/bucket.
type LocalDisk struct {
	root   string
	bucket string
}

func NewLocalDisk(root, bucket string) (*LocalDisk, error) {
	if root == "" {
		return nil, fmt.Errorf("local blob store root is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("local blob store bucket is required")
	}
	return &LocalDisk{root: root, bucket: bucket}, nil
}

func (s *LocalDisk) path(bucket, name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(cleaned)), nil
}

func (s *LocalDisk) Get(ctx context.Context, name string) (data []byte, err error) {
	defer func(start time.Time) { observe(ctx, backendLocal, OpGet, start, err) }(time.Now())

	p, err := s.path(s.bucket, name)
	if err != nil {
		return nil, err
	}
	data, err = os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", s.bucket, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s/%s: %w", s.bucket, name, err)
	}
	return data, nil
}

func (s *LocalDisk) Put(ctx context.Context, name string, data []byte) (err error) {
	defer func(start time.Time) { observe(ctx, backendLocal, OpPut, start, err) }(time.Now())
	return s.write(s.bucket, name, data)
}

func (s *LocalDisk) Copy(ctx context.Context, name, destBucket, destName string) (err error) {
	defer func(start time.Time) { observe(ctx, backendLocal, OpCopy, start, err) }(time.Now())

	data, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	return s.write(destBucket, destName, data)
}

// write goes through a temporary file so readers never see a partial blob.
func (s *LocalDisk) write(bucket, name string, data []byte) error {
	p, err := s.path(bucket, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob %s/%s: %w", bucket, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write blob %s/%s: %w", bucket, name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to move blob into place %s/%s: %w", bucket, name, err)
	}
	return nil
}
