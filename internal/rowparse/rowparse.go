// Package rowparse turns a raw `key;value` line into its key and numeric value.
//
// It does not decide what happens to rows it cannot read: callers get a
// sentinel error back and are expected to count or report the dropped row.
package rowparse

import (
	"bytes"
	"errors"
	"math"
	"strconv"
)

// DefaultMaxKeyLen is the longest accepted key in bytes.
const DefaultMaxKeyLen = 32

var (
	ErrNoSeparator = errors.New("rowparse: missing ';' separator")
	ErrEmptyKey    = errors.New("rowparse: empty key")
	ErrKeyTooLong  = errors.New("rowparse: key too long")
	ErrBadValue    = errors.New("rowparse: value is not a number")
)

// Parse splits line at its first ';'. The returned key aliases line. A
// non-positive maxKeyLen selects DefaultMaxKeyLen.
func Parse(line []byte, maxKeyLen int) ([]byte, float64, error) {
	if maxKeyLen <= 0 {
		maxKeyLen = DefaultMaxKeyLen
	}
	i := bytes.IndexByte(line, ';')
	if i < 0 {
		return nil, 0, ErrNoSeparator
	}
	key, raw := line[:i], line[i+1:]
	switch {
	case len(key) == 0:
		return nil, 0, ErrEmptyKey
	case len(key) > maxKeyLen:
		return nil, 0, ErrKeyTooLong
	}
	if !decimal(raw) {
		return nil, 0, ErrBadValue
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, 0, ErrBadValue
	}
	return key, v, nil
}

// decimal reports whether raw holds only decimal number bytes. ParseFloat
// alone would also take NaN, Inf, hex floats and '_' digit separators.
func decimal(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	for _, c := range raw {
		switch {
		case c >= '0' && c <= '9':
		case c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}
