package splitter

import (
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	coincDefTable    = "coinc_definer"
	coincTable       = "coinc_event"
	coincMapTable    = "coinc_event_map"
	snglTable        = "sngl_inspiral"
	processTable     = "process"
	processParams    = "process_params"
	timeSlideTable   = "time_slide"
	eventIDParamName = "event_id"
)

// passThroughTables are copied unchanged into every output document, in this order.
var passThroughTables = []string{coincDefTable, processParams, processTable, timeSlideTable}

// CoincDef identifies a coincidence definition by its (search, search_coinc_type) pair.
type CoincDef struct {
	Search          string `yaml:"search"`
	SearchCoincType int    `yaml:"search_coinc_type"`
}

// InspiralCoincDef is the sngl_inspiral<->sngl_inspiral coincidence definition.
var InspiralCoincDef = CoincDef{Search: "inspiral", SearchCoincType: 0}

// DuplicatePolicy decides what happens when an identifier that should be unique
// (sngl_inspiral event_id, event_id param) appears more than once.
type DuplicatePolicy string

const (
	DuplicatesError         DuplicatePolicy = "error"
	DuplicatesLastWriteWins DuplicatePolicy = "last-write-wins"
)

type IndexOptions struct {
	Target     CoincDef
	Duplicates DuplicatePolicy
	Logger     *zap.Logger
}

// Index holds the lookup structures for splitting one document. It is read-only once
// BuildIndex returns.
type Index struct {
	coincDefID string

	coincs      *Table
	coincMaps   *Table
	sngls       *Table
	passThrough []*Table

	coincIDCol    int
	coincDefIDCol int
	mapCoincIDCol int
	mapEventIDCol int

	mapsByCoinc map[string][]Row
	snglByID    map[string]Row
	seriesByID  map[string]*etree.Element
}

func BuildIndex(doc *Document, opts IndexOptions) (*Index, error) {
	if opts.Target.Search == "" {
		opts.Target = InspiralCoincDef
	}
	if opts.Duplicates == "" {
		opts.Duplicates = DuplicatesError
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Index{}
	var err error
	if idx.coincs, err = requireTable(doc, coincTable); err != nil {
		return nil, err
	}
	if idx.coincMaps, err = requireTable(doc, coincMapTable); err != nil {
		return nil, err
	}
	if idx.sngls, err = requireTable(doc, snglTable); err != nil {
		return nil, err
	}
	coincDefs, err := requireTable(doc, coincDefTable)
	if err != nil {
		return nil, err
	}

	for _, name := range passThroughTables {
		if name == coincDefTable {
			idx.passThrough = append(idx.passThrough, coincDefs)
			continue
		}
		t, err := doc.Table(name)
		if errors.Is(err, ErrTableNotFound) {
			logger.Debug("pass-through table absent", zap.String("table", name))
			continue
		}
		if err != nil {
			return nil, err
		}
		idx.passThrough = append(idx.passThrough, t)
	}

	if idx.coincDefID, err = resolveCoincDefID(coincDefs, opts.Target); err != nil {
		return nil, err
	}

	if err := idx.lookupColumns(); err != nil {
		return nil, err
	}
	idx.mapsByCoinc = groupRows(idx.coincMaps.Rows, idx.mapCoincIDCol)

	if idx.snglByID, err = indexSngls(idx.sngls, opts.Duplicates, logger); err != nil {
		return nil, err
	}
	if idx.seriesByID, err = indexSeries(doc, opts.Duplicates, logger); err != nil {
		return nil, err
	}

	logger.Debug("index built",
		zap.String("coinc_def_id", idx.coincDefID),
		zap.Int("coinc_events", len(idx.coincs.Rows)),
		zap.Int("coinc_groups", len(idx.mapsByCoinc)),
		zap.Int("sngl_inspirals", len(idx.snglByID)),
		zap.Int("series", len(idx.seriesByID)),
	)
	return idx, nil
}

func requireTable(doc *Document, name string) (*Table, error) {
	t, err := doc.Table(name)
	if errors.Is(err, ErrTableNotFound) {
		return nil, &SchemaMismatchError{Reason: "missing table " + name, Err: err}
	}
	return t, err
}

// resolveCoincDefID finds the coinc_def_id of the row matching target.
func resolveCoincDefID(defs *Table, target CoincDef) (string, error) {
	idCol, err := defs.Column("coinc_def_id")
	if err != nil {
		return "", &SchemaMismatchError{Reason: "coinc_definer columns", Err: err}
	}
	searchCol, err := defs.Column("search")
	if err != nil {
		return "", &SchemaMismatchError{Reason: "coinc_definer columns", Err: err}
	}
	typeCol, err := defs.Column("search_coinc_type")
	if err != nil {
		return "", &SchemaMismatchError{Reason: "coinc_definer columns", Err: err}
	}

	var ids []string
	for _, row := range defs.Rows {
		if row.Value(searchCol) != target.Search {
			continue
		}
		typ, err := strconv.Atoi(strings.TrimSpace(row.Value(typeCol)))
		if err != nil || typ != target.SearchCoincType {
			continue
		}
		ids = append(ids, row.Value(idCol))
	}
	switch len(ids) {
	case 0:
		return "", &SchemaMismatchError{
			Reason: "no coinc_definer row for search=" + strconv.Quote(target.Search) +
				" search_coinc_type=" + strconv.Itoa(target.SearchCoincType),
		}
	case 1:
		return ids[0], nil
	default:
		return "", &SchemaMismatchError{
			Reason: "coinc_definer rows " + strings.Join(ids, ", ") + " share search=" +
				strconv.Quote(target.Search) + " search_coinc_type=" + strconv.Itoa(target.SearchCoincType),
		}
	}
}

func (idx *Index) lookupColumns() error {
	cols := []struct {
		t    *Table
		name string
		dst  *int
	}{
		{idx.coincs, "coinc_event_id", &idx.coincIDCol},
		{idx.coincs, "coinc_def_id", &idx.coincDefIDCol},
		{idx.coincMaps, "coinc_event_id", &idx.mapCoincIDCol},
		{idx.coincMaps, "event_id", &idx.mapEventIDCol},
	}
	for _, c := range cols {
		i, err := c.t.Column(c.name)
		if err != nil {
			return &SchemaMismatchError{Reason: c.t.Name + " columns", Err: err}
		}
		*c.dst = i
	}
	return nil
}

// groupRows sorts rows by the key column and groups consecutive equal keys. The sort
// is stable, so rows inside a group keep their input order.
func groupRows(rows []Row, keyCol int) map[string][]Row {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b Row) int {
		return strings.Compare(a.Value(keyCol), b.Value(keyCol))
	})

	groups := make(map[string][]Row)
	for start := 0; start < len(sorted); {
		key := sorted[start].Value(keyCol)
		end := start + 1
		for end < len(sorted) && sorted[end].Value(keyCol) == key {
			end++
		}
		groups[key] = sorted[start:end:end]
		start = end
	}
	return groups
}

func indexSngls(sngls *Table, policy DuplicatePolicy, logger *zap.Logger) (map[string]Row, error) {
	idCol, err := sngls.Column("event_id")
	if err != nil {
		return nil, &SchemaMismatchError{Reason: "sngl_inspiral columns", Err: err}
	}
	out := make(map[string]Row, len(sngls.Rows))
	for _, row := range sngls.Rows {
		id := row.Value(idCol)
		if _, ok := out[id]; ok {
			if err := duplicate(policy, logger, snglTable, id); err != nil {
				return nil, err
			}
		}
		out[id] = row
	}
	return out, nil
}

func indexSeries(doc *Document, policy DuplicatePolicy, logger *zap.Logger) (map[string]*etree.Element, error) {
	out := make(map[string]*etree.Element)
	root := doc.doc.Root()
	for _, param := range doc.ParamsByName(eventIDParamName) {
		// A param directly under the document root does not own a series.
		parent := param.Parent()
		if parent == nil || parent == root {
			continue
		}
		id := strings.TrimSpace(param.Text())
		if _, ok := out[id]; ok {
			if err := duplicate(policy, logger, "series", id); err != nil {
				return nil, err
			}
		}
		out[id] = parent
	}
	return out, nil
}

func duplicate(policy DuplicatePolicy, logger *zap.Logger, index string, id string) error {
	if policy == DuplicatesLastWriteWins {
		logger.Warn("duplicate id, keeping last", zap.String("index", index), zap.String("id", id))
		return nil
	}
	return &DuplicateKeyError{Index: index, ID: id}
}

// TargetCoincDefID is the coinc_def_id events must have to be split out.
func (idx *Index) TargetCoincDefID() string {
	return idx.coincDefID
}

// CoincEvents returns the coinc_event rows in input order.
func (idx *Index) CoincEvents() []Row {
	return idx.coincs.Rows
}

// CoincEventID returns the coinc_event_id of a coinc_event row.
func (idx *Index) CoincEventID(coinc Row) string {
	return coinc.Value(idx.coincIDCol)
}

// Qualifies reports whether a coinc_event row belongs to the target definition.
func (idx *Index) Qualifies(coinc Row) bool {
	return coinc.Value(idx.coincDefIDCol) == idx.coincDefID
}
