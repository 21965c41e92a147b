package file

import (
	"fmt"

	"rowscan/internal/datasource"
)

// Kinds accepted by NewSource.
const (
	KindFile = "file"
	KindMmap = "mmap"
)

// NewSource returns the source for kind; an empty kind means KindFile.
func NewSource(kind, path string) (datasource.Source, error) {
	switch kind {
	case "", KindFile:
		return NewLocal(path), nil
	case KindMmap:
		return NewMmap(path), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q (want %s|%s)", kind, KindFile, KindMmap)
	}
}
