// Package asciitable reads and writes the simple ASCII event tables produced alongside
// the XML catalogs: one header line of column names followed by one row per line,
// fields separated by tabs or runs of whitespace.
package asciitable

import (
	"bufio"
	"bytes"
	"cmp"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Table struct {
	Columns []string
	Rows    [][]string
}

// Read parses a table. Blank lines are ignored and lines starting with '#' are
// comments. The first other line is the header, unless it looks like data (one of its
// fields is a number) and a comment precedes it: then the last such comment is the
// header ("# col1 col2").
func Read(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	t := &Table{}
	lineNo := 0
	lastComment := ""
	lastCommentNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			if t.Columns == nil {
				lastComment, lastCommentNo = trimmed, lineNo
			}
			continue
		}
		fields := splitFields(line)
		if t.Columns == nil {
			if lastCommentNo == 0 || !looksLikeData(fields) {
				t.Columns = fields
				continue
			}
			if err := t.setHeader(lastComment, lastCommentNo); err != nil {
				return nil, err
			}
		}
		if len(fields) != len(t.Columns) {
			return nil, errors.Errorf("line %d: got %d fields, header has %d columns", lineNo, len(fields), len(t.Columns))
		}
		t.Rows = append(t.Rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read table")
	}
	if t.Columns == nil && lastCommentNo > 0 {
		if err := t.setHeader(lastComment, lastCommentNo); err != nil {
			return nil, err
		}
	}
	if t.Columns == nil {
		return nil, errors.New("table has no header")
	}
	return t, nil
}

func (t *Table) setHeader(comment string, lineNo int) error {
	t.Columns = splitFields(strings.TrimPrefix(comment, "#"))
	if len(t.Columns) == 0 {
		return errors.Errorf("line %d: empty header", lineNo)
	}
	return nil
}

// looksLikeData reports whether any field parses as a number. Column names don't.
func looksLikeData(fields []string) bool {
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f, 64); err == nil {
			return true
		}
	}
	return false
}

func splitFields(line string) []string {
	if strings.Contains(line, "\t") {
		parts := strings.Split(strings.Trim(line, "\t "), "\t")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return parts
	}
	return strings.Fields(line)
}

// Column returns the index of the named column.
func (t *Table) Column(name string) (int, error) {
	i := slices.Index(t.Columns, name)
	if i < 0 {
		return -1, errors.Errorf("no column %q", name)
	}
	return i, nil
}

// SortBy stable-sorts the rows by the named column. Values compare numerically when
// every value in the column parses as a number, lexically otherwise. NaN sorts last.
func (t *Table) SortBy(name string) error {
	col, err := t.Column(name)
	if err != nil {
		return err
	}

	nums := make([]float64, len(t.Rows))
	numeric := true
	for i, row := range t.Rows {
		v, err := strconv.ParseFloat(row[col], 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = v
	}

	if !numeric {
		slices.SortStableFunc(t.Rows, func(a, b []string) int {
			return strings.Compare(a[col], b[col])
		})
		return nil
	}

	order := make([]int, len(t.Rows))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return compareNumbers(nums[a], nums[b])
	})
	sorted := make([][]string, len(t.Rows))
	for i, j := range order {
		sorted[i] = t.Rows[j]
	}
	t.Rows = sorted
	return nil
}

func compareNumbers(a, b float64) int {
	switch an, bn := math.IsNaN(a), math.IsNaN(b); {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmp.Compare(a, b)
}

// Write emits the table tab-separated, header first.
func (t *Table) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(t.Columns, "\t") + "\n"); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if _, err := bw.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Bytes returns the output of Write.
func (t *Table) Bytes() []byte {
	var buf bytes.Buffer
	_ = t.Write(&buf)
	return buf.Bytes()
}
