package splitter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const defaultDelimiter = ","

// Row is one table row as raw stream tokens, quotes included. Keeping the raw text
// lets rows be written back exactly as they were read.
type Row []string

// Value returns the unquoted value of column i.
func (r Row) Value(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return unquoteToken(r[i])
}

// splitStream tokenizes the text of a Stream element. Whitespace around tokens is
// dropped; delimiters inside double quotes do not split. With a whitespace delimiter
// any run of whitespace separates tokens, so null tokens cannot occur.
func splitStream(text string, delim string) ([]string, error) {
	d, size := utf8.DecodeRuneInString(delim)
	if size == 0 || size != len(delim) {
		return nil, errors.Errorf("invalid stream delimiter %q", delim)
	}

	space := unicode.IsSpace(d)

	var tokens []string
	var cur strings.Builder
	inQuote := false
	escaped := false
	for _, c := range text {
		switch {
		case escaped:
			cur.WriteRune(c)
			escaped = false
		case inQuote && c == '\\':
			cur.WriteRune(c)
			escaped = true
		case c == '"':
			cur.WriteRune(c)
			inQuote = !inQuote
		case !inQuote && space && unicode.IsSpace(c):
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		case !inQuote && c == d:
			tokens = append(tokens, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quoted string in stream")
	}
	if !space || cur.Len() > 0 {
		tokens = append(tokens, strings.TrimSpace(cur.String()))
	}
	return tokens, nil
}

// decodeRows groups stream tokens into rows of ncol columns. A trailing delimiter
// after the last row is tolerated.
func decodeRows(text string, delim string, ncol int) ([]Row, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if ncol <= 0 {
		return nil, errors.New("stream has data but table has no columns")
	}
	tokens, err := splitStream(text, delim)
	if err != nil {
		return nil, err
	}
	if n := len(tokens); n > 1 && tokens[n-1] == "" && (n%ncol == 1 || ncol == 1) {
		tokens = tokens[:n-1]
	}
	if len(tokens)%ncol != 0 {
		return nil, errors.Errorf("stream has %d tokens, not a multiple of %d columns", len(tokens), ncol)
	}

	rows := make([]Row, 0, len(tokens)/ncol)
	for i := 0; i < len(tokens); i += ncol {
		rows = append(rows, Row(tokens[i:i+ncol:i+ncol]))
	}
	return rows, nil
}

// encodeRows renders rows in the layout LIGO-LW writers use: one row per line,
// rows separated by the delimiter.
func encodeRows(rows []Row, delim string) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteString(delim)
		}
		b.WriteString("\n\t\t\t")
		b.WriteString(strings.Join(r, delim))
	}
	b.WriteString("\n\t\t")
	return b.String()
}

func unquoteToken(raw string) string {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return raw
	}
	inner := raw[1 : len(raw)-1]
	if !strings.Contains(inner, `\`) {
		return inner
	}
	var b strings.Builder
	escaped := false
	for _, c := range inner {
		if !escaped && c == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(c)
	}
	return b.String()
}
