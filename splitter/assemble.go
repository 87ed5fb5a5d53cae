package splitter

import (
	"strings"
)

// Assembled is the output document for one coinc event.
type Assembled struct {
	CoincEventID string
	FileName     string
	Doc          *OutputDocument
	SingleEvents int
	Series       int
}

// Assemble builds the self-contained document for one qualifying coinc_event row:
// the pass-through tables, the row itself, its coinc_event_map rows, the
// sngl_inspiral rows they reference and any series saved for those triggers.
func (idx *Index) Assemble(coinc Row) (*Assembled, error) {
	coincID := idx.CoincEventID(coinc)

	maps := idx.mapsByCoinc[coincID]
	if len(maps) == 0 {
		return nil, &DanglingReferenceError{CoincEventID: coincID, Table: coincMapTable, ID: coincID}
	}

	sngls := make([]Row, 0, len(maps))
	for _, m := range maps {
		eventID := m.Value(idx.mapEventIDCol)
		sngl, ok := idx.snglByID[eventID]
		if !ok {
			return nil, &DanglingReferenceError{CoincEventID: coincID, Table: snglTable, ID: eventID}
		}
		sngls = append(sngls, sngl)
	}

	out := NewOutputDocument()
	for _, t := range idx.passThrough {
		out.Append(t.CopyElement())
	}
	out.Append(idx.coincs.Subset([]Row{coinc}).Element())
	out.Append(idx.coincMaps.Subset(maps).Element())
	out.Append(idx.sngls.Subset(sngls).Element())

	series := 0
	for _, m := range maps {
		if el, ok := idx.seriesByID[m.Value(idx.mapEventIDCol)]; ok {
			out.Append(el.Copy())
			series++
		}
	}

	return &Assembled{
		CoincEventID: coincID,
		FileName:     OutputFileName(coincID),
		Doc:          out,
		SingleEvents: len(sngls),
		Series:       series,
	}, nil
}

var fileNameReplacer = strings.NewReplacer("/", "_", `\`, "_")

// OutputFileName is the name of the file holding the given coinc event.
func OutputFileName(coincEventID string) string {
	return fileNameReplacer.Replace(coincEventID) + ".xml.gz"
}
