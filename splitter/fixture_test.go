package splitter

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixtureTable struct {
	name string
	// cols are "name:type" pairs.
	cols []string
	rows [][]string
}

type fixtureSeries struct {
	eventID string
	label   string
}

type fixtureCatalog struct {
	tables []fixtureTable
	series []fixtureSeries
}

// newFixtureCatalog returns a small catalog with three coinc events:
//
//	10: qualifying, sngl 1 (H1) + 2 (L1), both with series
//	11: other definition, sngl 3
//	12: qualifying, sngl 5, 4, 6 (mapping rows interleaved with others); 6 has no series
func newFixtureCatalog() *fixtureCatalog {
	return &fixtureCatalog{
		tables: []fixtureTable{
			{
				name: "process",
				cols: []string{"process_id:int_8s", "program:lstring", "ifos:lstring"},
				rows: [][]string{{"0", `"gstlal_inspiral"`, `"H1,L1,V1"`}},
			},
			{
				name: "process_params",
				cols: []string{"process_id:int_8s", "param:lstring", "value:lstring"},
				rows: [][]string{
					{"0", `"--gps-start-time"`, `"1000000000"`},
					{"0", `"--comment"`, `"say \"hi\""`},
				},
			},
			{
				name: "coinc_definer",
				cols: []string{"coinc_def_id:int_8s", "search:lstring", "search_coinc_type:int_4u", "description:lstring"},
				rows: [][]string{
					{"0", `"inspiral"`, "0", `"sngl_inspiral<-->sngl_inspiral coincidences"`},
					{"1", `"inspiral"`, "1", `"sim_inspiral<-->coinc_event coincidences"`},
				},
			},
			{
				name: "time_slide",
				cols: []string{"time_slide_id:int_8s", "instrument:lstring", "offset:real_8"},
				rows: [][]string{{"0", `"H1"`, "0"}, {"0", `"L1"`, "0"}, {"0", `"V1"`, "0"}},
			},
			{
				name: "coinc_event",
				cols: []string{"coinc_event_id:int_8s", "coinc_def_id:int_8s", "instruments:lstring", "nevents:int_4u"},
				rows: [][]string{
					{"10", "0", `"H1,L1"`, "2"},
					{"11", "1", `"H1"`, "1"},
					{"12", "0", `"H1,L1,V1"`, "3"},
				},
			},
			{
				name: "coinc_event_map",
				cols: []string{"coinc_event_id:int_8s", "table_name:char_v", "event_id:int_8s"},
				rows: [][]string{
					{"12", `"sngl_inspiral"`, "5"},
					{"10", `"sngl_inspiral"`, "1"},
					{"11", `"sngl_inspiral"`, "3"},
					{"12", `"sngl_inspiral"`, "4"},
					{"10", `"sngl_inspiral"`, "2"},
					{"12", `"sngl_inspiral"`, "6"},
				},
			},
			{
				name: "sngl_inspiral",
				cols: []string{"event_id:int_8s", "ifo:lstring", "snr:real_4"},
				rows: [][]string{
					{"1", `"H1"`, "8.1"},
					{"2", `"L1"`, "7.5"},
					{"3", `"H1"`, "5"},
					{"4", `"H1"`, "9"},
					{"5", `"L1"`, "10"},
					{"6", `"V1"`, "4"},
				},
			},
		},
		series: []fixtureSeries{
			{eventID: "1", label: "a"},
			{eventID: "2", label: "b"},
			{eventID: "4", label: "c"},
			{eventID: "5", label: "d"},
		},
	}
}

func (c *fixtureCatalog) table(name string) *fixtureTable {
	for i := range c.tables {
		if c.tables[i].name == name {
			return &c.tables[i]
		}
	}
	return nil
}

func (c *fixtureCatalog) removeTable(name string) {
	out := c.tables[:0]
	for _, t := range c.tables {
		if t.name != name {
			out = append(out, t)
		}
	}
	c.tables = out
}

var xmlText = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func (c *fixtureCatalog) XML() string {
	var b strings.Builder
	b.WriteString("<?xml version='1.0' encoding='utf-8'?>\n")
	b.WriteString(`<!DOCTYPE LIGO_LW SYSTEM "http://ldas-sw.ligo.caltech.edu/doc/ligolwAPI/html/ligolw_dtd.txt">` + "\n")
	b.WriteString("<LIGO_LW>\n")
	for _, t := range c.tables {
		fmt.Fprintf(&b, "\t<Table Name=\"%s:table\">\n", t.name)
		for _, col := range t.cols {
			name, typ, _ := strings.Cut(col, ":")
			fmt.Fprintf(&b, "\t\t<Column Name=\"%s\" Type=\"%s\"/>\n", name, typ)
		}
		fmt.Fprintf(&b, "\t\t<Stream Name=\"%s:table\" Delimiter=\",\" Type=\"Local\">", t.name)
		for i, row := range t.rows {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("\n\t\t\t" + xmlText.Replace(strings.Join(row, ",")))
		}
		b.WriteString("\n\t\t</Stream>\n\t</Table>\n")
	}
	for _, s := range c.series {
		b.WriteString("\t<LIGO_LW Name=\"COMPLEX8TimeSeries:snr:array\">\n")
		b.WriteString("\t\t<Time Type=\"GPS\" Name=\"epoch\">1000000000</Time>\n")
		fmt.Fprintf(&b, "\t\t<Param Type=\"lstring\" Name=\"label:param\">%s</Param>\n", s.label)
		b.WriteString("\t\t<Array Type=\"real_4\" Name=\"snr:array\">\n")
		b.WriteString("\t\t\t<Dim Start=\"0\" Scale=\"0.000244140625\" Unit=\"s\">3</Dim>\n")
		b.WriteString("\t\t\t<Stream Delimiter=\" \" Type=\"Local\">1 2 3</Stream>\n")
		b.WriteString("\t\t</Array>\n")
		fmt.Fprintf(&b, "\t\t<Param Type=\"int_8s\" Name=\"event_id:param\">%s</Param>\n", s.eventID)
		b.WriteString("\t</LIGO_LW>\n")
	}
	b.WriteString("</LIGO_LW>\n")
	return b.String()
}

// writeCatalog writes the catalog gzipped into dir and returns its path.
func writeCatalog(t *testing.T, dir string, c *fixtureCatalog) string {
	t.Helper()
	path := filepath.Join(dir, "events.xml.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(c.XML()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func mustParse(t *testing.T, c *fixtureCatalog) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(c.XML()))
	require.NoError(t, err)
	return doc
}

// columnValues returns the unquoted values of one column of a table.
func columnValues(t *testing.T, table *Table, col string) []string {
	t.Helper()
	i, err := table.Column(col)
	require.NoError(t, err)
	out := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		out = append(out, row.Value(i))
	}
	return out
}

// seriesLabels returns the label param of every series in the document, in order.
func seriesLabels(doc *Document) []string {
	var out []string
	for _, p := range doc.ParamsByName("label") {
		out = append(out, p.Text())
	}
	return out
}
