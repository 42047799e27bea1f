// Package storage keeps uploaded package archives and serves them back for
// installs. The filesystem backend is the default; the MinIO backend stores
// the same names as object keys in a bucket.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrMissing marks a location that has no readable file behind it.
var ErrMissing = errors.New("package file missing")

// Object is an opened package file. Size is -1 when unknown.
type Object struct {
	io.ReadCloser
	Name string
	Size int64
}

// Store is implemented by every storage backend.
type Store interface {
	// Put stores r under name and returns the location it was written to.
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	// Open returns the file at location; failures wrap ErrMissing.
	Open(ctx context.Context, location string) (*Object, error)
	// Check reports whether the backend is usable.
	Check(ctx context.Context) error
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
