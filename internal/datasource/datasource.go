// Package datasource defines where tabular input comes from and where
// extracted output goes.
package datasource

import (
	"context"
	"io"
)

// Source opens input for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Destination creates output for writing.
type Destination interface {
	Create(ctx context.Context) (io.WriteCloser, error)
}
