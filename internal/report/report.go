// Package report renders an aggregate tree for people and for tools.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"

	"rowscan/internal/tree"
)

// Format names accepted by Resolve.
const (
	FormatAuto    = "auto"
	FormatSummary = "summary"
	FormatLines   = "lines"
	FormatNone    = "none"
)

// Resolve maps a requested format to a concrete one. FormatAuto picks
// FormatLines when out is a terminal and FormatSummary otherwise.
func Resolve(format string, out *os.File) (string, error) {
	switch format {
	case "", FormatAuto:
		if out != nil && (isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())) {
			return FormatLines, nil
		}
		return FormatSummary, nil
	case FormatSummary, FormatLines, FormatNone:
		return format, nil
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

// Write renders t to w in a concrete format returned by Resolve.
func Write(w io.Writer, format string, t *tree.Tree) error {
	switch format {
	case FormatSummary:
		return WriteSummary(w, t)
	case FormatLines:
		return WriteLines(w, t)
	case FormatNone:
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteSummary writes one line of the form {k1=min/mean/max, k2=...} in key
// order with one decimal place.
func WriteSummary(w io.Writer, t *tree.Tree) error {
	bw := bufio.NewWriter(w)
	bw.WriteByte('{')
	first := true
	var num []byte
	t.Walk(func(k []byte, s tree.Stats) bool {
		if !first {
			bw.WriteString(", ")
		}
		first = false
		bw.Write(k)
		bw.WriteByte('=')
		num = appendOne(num[:0], s.Min)
		num = append(num, '/')
		num = appendOne(num, s.Mean())
		num = append(num, '/')
		num = appendOne(num, s.Max)
		bw.Write(num)
		return true
	})
	bw.WriteString("}\n")
	return bw.Flush()
}

// WriteLines writes key;count;sum;min;mean;max per key in key order.
func WriteLines(w io.Writer, t *tree.Tree) error {
	bw := bufio.NewWriter(w)
	var row []byte
	t.Walk(func(k []byte, s tree.Stats) bool {
		row = append(row[:0], k...)
		row = append(row, ';')
		row = strconv.AppendInt(row, s.Count, 10)
		for _, v := range [...]float64{s.Sum, s.Min, s.Mean(), s.Max} {
			row = append(row, ';')
			row = appendOne(row, v)
		}
		row = append(row, '\n')
		bw.Write(row)
		return true
	})
	return bw.Flush()
}

func appendOne(dst []byte, v float64) []byte {
	return strconv.AppendFloat(dst, v, 'f', 1, 64)
}
