package splitter

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const (
	ligolwTag     = "LIGO_LW"
	ligolwDoctype = `DOCTYPE LIGO_LW SYSTEM "http://ldas-sw.ligo.caltech.edu/doc/ligolwAPI/html/ligolw_dtd.txt"`
)

// Document is a parsed LIGO-LW XML document.
type Document struct {
	doc *etree.Document
}

// ReadDocument reads a LIGO-LW document from path. Gzipped files are detected by
// their magic bytes, not by extension.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := ParseDocument(data)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return d, nil
}

// ParseDocument parses a LIGO-LW document, gunzipping it first if needed.
func ParseDocument(data []byte) (*Document, error) {
	var r io.Reader = bytes.NewReader(data)
	if isGzip(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer zr.Close()
		r = zr
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, "parse xml")
	}
	root := doc.Root()
	if root == nil || root.Tag != ligolwTag {
		return nil, errors.Errorf("root element is not %s", ligolwTag)
	}
	return &Document{doc: doc}, nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// Table decodes the single table named name. Table names are compared without the
// ":table" suffix.
func (d *Document) Table(name string) (*Table, error) {
	var found []*etree.Element
	for _, el := range d.doc.FindElements("//Table") {
		if tableName(el.SelectAttrValue("Name", "")) == name {
			found = append(found, el)
		}
	}
	switch len(found) {
	case 0:
		return nil, errors.Wrap(ErrTableNotFound, name)
	case 1:
		return decodeTable(name, found[0])
	default:
		return nil, errors.Errorf("document has %d %s tables, want 1", len(found), name)
	}
}

// ParamsByName returns every Param element called name, in document order.
func (d *Document) ParamsByName(name string) []*etree.Element {
	var out []*etree.Element
	for _, el := range d.doc.FindElements("//Param") {
		if paramName(el.SelectAttrValue("Name", "")) == name {
			out = append(out, el)
		}
	}
	return out
}

// Table is a decoded LIGO-LW table. The element it was decoded from is kept so that
// copies and subsets keep the original attributes and column declarations.
type Table struct {
	Name      string
	Columns   []string
	Delimiter string
	Rows      []Row

	el *etree.Element
}

func decodeTable(name string, el *etree.Element) (*Table, error) {
	t := &Table{Name: name, Delimiter: defaultDelimiter, el: el}
	for _, c := range el.SelectElements("Column") {
		t.Columns = append(t.Columns, columnName(c.SelectAttrValue("Name", "")))
	}
	stream := el.SelectElement("Stream")
	if stream == nil {
		return t, nil
	}
	t.Delimiter = stream.SelectAttrValue("Delimiter", defaultDelimiter)
	rows, err := decodeRows(stream.Text(), t.Delimiter, len(t.Columns))
	if err != nil {
		return nil, errors.Wrapf(err, "table %s", name)
	}
	t.Rows = rows
	return t, nil
}

// Column returns the index of the named column.
func (t *Table) Column(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, errors.Errorf("table %s has no column %s", t.Name, name)
}

// Subset returns a table with the same declaration as t holding only rows.
func (t *Table) Subset(rows []Row) *Table {
	return &Table{
		Name:      t.Name,
		Columns:   t.Columns,
		Delimiter: t.Delimiter,
		Rows:      rows,
		el:        t.el,
	}
}

// Element renders the table into a new element detached from any document.
func (t *Table) Element() *etree.Element {
	out := etree.NewElement("Table")
	copyAttrs(out, t.el)
	for _, c := range t.el.SelectElements("Column") {
		out.AddChild(c.Copy())
	}
	stream := out.CreateElement("Stream")
	if src := t.el.SelectElement("Stream"); src != nil {
		copyAttrs(stream, src)
	} else {
		stream.CreateAttr("Name", t.el.SelectAttrValue("Name", t.Name+":table"))
		stream.CreateAttr("Type", "Local")
		stream.CreateAttr("Delimiter", t.Delimiter)
	}
	stream.SetText(encodeRows(t.Rows, t.Delimiter))
	return out
}

// CopyElement returns a deep copy of the table element exactly as it was read.
func (t *Table) CopyElement() *etree.Element {
	return t.el.Copy()
}

func copyAttrs(dst, src *etree.Element) {
	for _, a := range src.Attr {
		dst.CreateAttr(a.FullKey(), a.Value)
	}
}

// OutputDocument is a new LIGO-LW document under construction.
type OutputDocument struct {
	doc  *etree.Document
	root *etree.Element
}

func NewOutputDocument() *OutputDocument {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version='1.0' encoding='utf-8'`)
	doc.CreateDirective(ligolwDoctype)
	root := doc.CreateElement(ligolwTag)
	return &OutputDocument{doc: doc, root: root}
}

// Append attaches el to the top-level container. etree moves an element that already
// has a parent, so callers pass copies of anything owned by another document.
func (o *OutputDocument) Append(el *etree.Element) {
	o.root.AddChild(el)
}

// Encode serializes the document and gzips it. The gzip header carries no timestamp
// or name, so equal documents encode to equal bytes.
func (o *OutputDocument) Encode(level int) ([]byte, error) {
	o.doc.IndentTabs()
	o.doc.WriteSettings.CanonicalText = true

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, errors.Wrap(err, "gzip writer")
	}
	if _, err := o.doc.WriteTo(zw); err != nil {
		_ = zw.Close()
		return nil, errors.Wrap(err, "write xml")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "close gzip writer")
	}
	return buf.Bytes(), nil
}

func tableName(s string) string {
	return lastField(strings.TrimSuffix(s, ":table"))
}

func columnName(s string) string {
	return lastField(s)
}

func paramName(s string) string {
	return lastField(strings.TrimSuffix(s, ":param"))
}

func lastField(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return s[i+1:]
	}
	return s
}
