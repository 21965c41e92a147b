package file

import (
	"context"
	"fmt"

	"golang.org/x/exp/mmap"

	"rowscan/internal/datasource"
)

// Mmap maps a local file read-only instead of reading it through syscalls.
type Mmap struct{ path string }

func NewMmap(path string) *Mmap { return &Mmap{path: path} }

type mappedFile struct{ *mmap.ReaderAt }

func (m mappedFile) Size() int64 { return int64(m.Len()) }

// Open maps the configured path. Errors wrap the path.
func (m *Mmap) Open(ctx context.Context) (datasource.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := mmap.Open(m.path)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", m.path, err)
	}
	return mappedFile{r}, nil
}
