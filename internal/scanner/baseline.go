package scanner

import (
	"bytes"
	"io"
)

const baselineBufSize = 4 << 20 // 4 MiB

// CountLines counts lines in r with a single sequential reader and no span
// bookkeeping. A trailing line without '\n' counts when it is non-empty. It is
// the reference the parallel scan is checked against.
func CountLines(r io.Reader) (int64, error) {
	buf := make([]byte, baselineBufSize)
	var (
		n       int64
		pending bool // bytes seen since the last '\n'
	)
	for {
		k, err := r.Read(buf)
		if k > 0 {
			chunk := buf[:k]
			n += int64(bytes.Count(chunk, []byte{'\n'}))
			pending = chunk[k-1] != '\n'
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
	}
	if pending {
		n++
	}
	return n, nil
}
