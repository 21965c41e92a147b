package datasource

import (
	"context"
	"io"
)

// File is an opened input that supports positioned reads from any number of
// goroutines at once.
type File interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

type Source interface {
	Open(ctx context.Context) (File, error)
}
