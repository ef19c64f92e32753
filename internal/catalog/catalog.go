// Package catalog loads the house plant collection and answers browse and
// lookup queries over it.
package catalog

import (
	"bytes"
	_ "embed"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func catalogSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("catalog.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = errors.Wrap(err, "add catalog schema")
			return
		}
		schema, schemaErr = compiler.Compile("catalog.schema.json")
		if schemaErr != nil {
			schemaErr = errors.Wrap(schemaErr, "compile catalog schema")
		}
	})
	return schema, schemaErr
}

// Table is an immutable, ordered set of records.
type Table struct {
	records []Record
	columns []string
}

// NewTable builds a table from records, keeping their order.
func NewTable(records []Record) *Table {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return &Table{records: records, columns: columns}
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.records)
}

// Records returns the records in file order. Callers must not mutate them.
func (t *Table) Records() []Record {
	return t.records
}

// At returns the i-th record.
func (t *Table) At(i int) Record {
	return t.records[i]
}

// Columns returns the sorted union of all record keys.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether any record carries col.
func (t *Table) HasColumn(col string) bool {
	i := sort.SearchStrings(t.columns, col)
	return i < len(t.columns) && t.columns[i] == col
}

// Filter returns a new table with the records for which keep returns true.
func (t *Table) Filter(keep func(Record) bool) *Table {
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return NewTable(out)
}

// CategoryCount is the number of records sharing a category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CategoryCounts counts records per category, most frequent first and ties
// by name. Records without a category are not counted.
func (t *Table) CategoryCounts() []CategoryCount {
	counts := make(map[string]int)
	for _, r := range t.records {
		if c, ok := r.String(ColCategory); ok {
			counts[c]++
		}
	}
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Overview summarizes the collection.
type Overview struct {
	Total       int           `json:"total"`
	Categories  int           `json:"categories"`
	TopCategory CategoryCount `json:"top_category"`
}

// Overview returns the total, the number of categories and the largest category.
func (t *Table) Overview() Overview {
	counts := t.CategoryCounts()
	o := Overview{Total: t.Len(), Categories: len(counts)}
	if len(counts) > 0 {
		o.TopCategory = counts[0]
	}
	return o
}

// Load reads the catalog at path. It returns a ParseError when the file is
// missing, unreadable, not JSON, or does not match the catalog schema; no
// partial table is returned.
func Load(path string) (*Table, error) {
	logger := log.GetLoggerWithName("catalog")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewParseError(path, "read file", err)
	}
	table, err := Parse(path, data)
	if err != nil {
		logger.Error("Catalog rejected", err, log.PathKey, path)
		return nil, err
	}
	logger.Debug("Catalog loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.SamplesKey, table.Len(),
		log.FeaturesKey, len(table.columns),
	)
	return table, nil
}

// Parse decodes and flattens a catalog document. name is used in errors.
func Parse(name string, data []byte) (*Table, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewParseError(name, "invalid JSON", err)
	}

	s, err := catalogSchema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(doc); err != nil {
		return nil, errors.NewParseError(name, "does not match catalog schema", err)
	}

	items, _ := doc.([]any)
	records := make([]Record, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		r := make(Record, len(obj))
		flatten("", obj, r)
		normalizeListFields(r)
		records = append(records, r)
	}
	return NewTable(records), nil
}

// Catalog is the collaborator API over a catalog file. Each call reloads
// the file.
type Catalog struct {
	path string
}

// New returns a Catalog reading path.
func New(path string) *Catalog {
	return &Catalog{path: path}
}

// Path returns the catalog file path.
func (c *Catalog) Path() string {
	return c.path
}

// LoadCatalog loads the full table.
func (c *Catalog) LoadCatalog() (*Table, error) {
	return Load(c.path)
}

// ListDisplayNames returns the sorted, de-duplicated display names.
func (c *Catalog) ListDisplayNames() ([]string, error) {
	t, err := c.LoadCatalog()
	if err != nil {
		return nil, err
	}
	return DisplayNames(t), nil
}

// DisplayNames returns the sorted, de-duplicated display names of t.
func DisplayNames(t *Table) []string {
	seen := make(map[string]struct{}, t.Len())
	names := make([]string, 0, t.Len())
	for _, r := range t.records {
		name := r.DisplayName()
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetRecord returns the first record whose common-name list contains
// displayName as a substring, or an empty Record when none does.
func (c *Catalog) GetRecord(displayName string) (Record, error) {
	t, err := c.LoadCatalog()
	if err != nil {
		return nil, err
	}
	return Find(t, displayName), nil
}

// Find is GetRecord over an already loaded table.
func Find(t *Table, displayName string) Record {
	for _, r := range t.records {
		common, _ := r.String(ColCommon)
		if strings.Contains(common, displayName) {
			return r
		}
	}
	return Record{}
}

// SelectorFunc picks one record from a table, or reports false.
type SelectorFunc func(*Table) (Record, bool)

// Recommend loads the table and applies sel to it.
func (c *Catalog) Recommend(sel SelectorFunc) (Record, bool, error) {
	t, err := c.LoadCatalog()
	if err != nil {
		return nil, false, err
	}
	r, ok := sel(t)
	return r, ok, nil
}
