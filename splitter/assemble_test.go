package splitter

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assembleCoinc(t *testing.T, idx *Index, coincID string) (*Assembled, error) {
	t.Helper()
	for _, row := range idx.CoincEvents() {
		if idx.CoincEventID(row) == coincID {
			return idx.Assemble(row)
		}
	}
	t.Fatalf("no coinc event %s", coincID)
	return nil, nil
}

func TestAssemble_SelectsRowsForOneEvent(t *testing.T) {
	idx, err := BuildIndex(mustParse(t, newFixtureCatalog()), IndexOptions{})
	require.NoError(t, err)

	a, err := assembleCoinc(t, idx, "12")
	require.NoError(t, err)
	assert.Equal(t, "12", a.CoincEventID)
	assert.Equal(t, "12.xml.gz", a.FileName)
	assert.Equal(t, 3, a.SingleEvents)
	assert.Equal(t, 2, a.Series)

	data, err := a.Doc.Encode(-1)
	require.NoError(t, err)
	doc, err := ParseDocument(data)
	require.NoError(t, err)

	coincs, err := doc.Table("coinc_event")
	require.NoError(t, err)
	assert.Equal(t, []string{"12"}, columnValues(t, coincs, "coinc_event_id"))

	maps, err := doc.Table("coinc_event_map")
	require.NoError(t, err)
	assert.Equal(t, []string{"12", "12", "12"}, columnValues(t, maps, "coinc_event_id"))
	assert.Equal(t, []string{"5", "4", "6"}, columnValues(t, maps, "event_id"))

	sngls, err := doc.Table("sngl_inspiral")
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "4", "6"}, columnValues(t, sngls, "event_id"))
	assert.Equal(t, []string{"L1", "H1", "V1"}, columnValues(t, sngls, "ifo"))

	assert.Equal(t, []string{"d", "c"}, seriesLabels(doc))
}

func TestAssemble_DoesNotDetachSourceNodes(t *testing.T) {
	doc := mustParse(t, newFixtureCatalog())
	idx, err := BuildIndex(doc, IndexOptions{})
	require.NoError(t, err)

	_, err = assembleCoinc(t, idx, "10")
	require.NoError(t, err)
	_, err = assembleCoinc(t, idx, "12")
	require.NoError(t, err)

	// Series and pass-through tables still belong to the input document.
	assert.Len(t, doc.ParamsByName("event_id"), 4)
	for _, id := range []string{"1", "2", "4", "5"} {
		assert.NotNil(t, idx.seriesByID[id].Parent(), id)
	}
	for _, table := range idx.passThrough {
		assert.NotNil(t, table.el.Parent(), table.Name)
	}
}

func TestAssemble_DanglingSnglReference(t *testing.T) {
	c := newFixtureCatalog()
	maps := c.table("coinc_event_map")
	maps.rows = append(maps.rows, []string{"10", `"sngl_inspiral"`, `"H1:9999"`})

	idx, err := BuildIndex(mustParse(t, c), IndexOptions{})
	require.NoError(t, err)

	_, err = assembleCoinc(t, idx, "10")
	var dangling *DanglingReferenceError
	require.True(t, errors.As(err, &dangling), "got %v", err)
	assert.Equal(t, "10", dangling.CoincEventID)
	assert.Equal(t, "sngl_inspiral", dangling.Table)
	assert.Equal(t, "H1:9999", dangling.ID)
}

func TestAssemble_EventWithoutMappings(t *testing.T) {
	c := newFixtureCatalog()
	coincs := c.table("coinc_event")
	coincs.rows = append(coincs.rows, []string{"13", "0", `"H1"`, "1"})

	idx, err := BuildIndex(mustParse(t, c), IndexOptions{})
	require.NoError(t, err)

	_, err = assembleCoinc(t, idx, "13")
	var dangling *DanglingReferenceError
	require.True(t, errors.As(err, &dangling), "got %v", err)
	assert.Equal(t, "coinc_event_map", dangling.Table)
}

func TestOutputFileName(t *testing.T) {
	assert.Equal(t, "42.xml.gz", OutputFileName("42"))
	assert.Equal(t, "coinc_event:coinc_event_id:7.xml.gz", OutputFileName("coinc_event:coinc_event_id:7"))
	assert.Equal(t, "a_b_c.xml.gz", OutputFileName(`a/b\c`))
}
