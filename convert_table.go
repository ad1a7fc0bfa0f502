package kgforge

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// DefaultSeparator joins nested property names into column names.
const DefaultSeparator = "."

// TableOptions controls the tabular form.
type TableOptions struct {
	// NA values are treated as missing in both directions.
	NA            []any
	Separator     string
	StoreMetadata bool
}

func (o TableOptions) separator() string {
	if o.Separator == "" {
		return DefaultSeparator
	}
	return o.Separator
}

// Table is a column-ordered grid of cells. A nil cell is a missing value.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Column returns the index of name, or -1.
func (t *Table) Column(name string) int {
	return slices.Index(t.Columns, name)
}

// AsTable flattens resources into rows. Columns are the union of every row's
// paths in first-seen order; lists stay single cells.
func AsTable(rs []*Resource, opts TableOptions) *Table {
	sep := opts.separator()
	table := &Table{}
	index := map[string]int{}
	flat := make([][]cell, len(rs))
	for i, r := range rs {
		flat[i] = flattenResource(r, "", sep, opts)
		for _, c := range flat[i] {
			if _, ok := index[c.column]; !ok {
				index[c.column] = len(table.Columns)
				table.Columns = append(table.Columns, c.column)
			}
		}
	}
	for _, cells := range flat {
		row := make([]any, len(table.Columns))
		for _, c := range cells {
			row[index[c.column]] = c.value
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

type cell struct {
	column string
	value  any
}

func flattenResource(r *Resource, prefix, sep string, opts TableOptions) []cell {
	if r == nil {
		return nil
	}
	column := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + sep + name
	}
	var out []cell
	if r.ID != "" {
		out = append(out, cell{column: column("id"), value: r.ID})
	}
	if types := typesValue(r.Types); types != nil {
		out = append(out, cell{column: column("type"), value: types})
	}
	r.props.Range(func(name string, value any) bool {
		if nested, ok := value.(*Resource); ok {
			out = append(out, flattenResource(nested, column(name), sep, opts)...)
			return true
		}
		tree := treeValue(value, JSONOptions{StoreMetadata: opts.StoreMetadata})
		if tree == nil || IsNA(tree, opts.NA) {
			tree = nil
		}
		out = append(out, cell{column: column(name), value: tree})
		return true
	})
	if opts.StoreMetadata && prefix == "" && r.Meta.Registered() {
		out = append(out,
			cell{column: KeyRevision, value: int64(r.Meta.Revision)},
			cell{column: KeyDeprecated, value: r.Meta.Deprecated},
		)
	}
	return out
}

// FromTable rebuilds one resource per row, nesting columns on the separator.
// Nil and na cells are dropped.
func FromTable(t *Table, opts TableOptions) ([]*Resource, error) {
	if t == nil {
		return nil, nil
	}
	sep := opts.separator()
	out := make([]*Resource, len(t.Rows))
	var failures []ItemError
	for i, row := range t.Rows {
		r, err := rowResource(t.Columns, row, sep, opts)
		if err != nil {
			failures = append(failures, ItemError{Index: i, Err: err})
			continue
		}
		out[i] = r
	}
	return out, NewBatchError("from table", len(t.Rows), failures)
}

func rowResource(columns []string, row []any, sep string, opts TableOptions) (*Resource, error) {
	if len(row) > len(columns) {
		return nil, fmt.Errorf("kgforge: row has %d cells for %d columns", len(row), len(columns))
	}
	r := &Resource{}
	for j, value := range row {
		if value == nil || IsNA(value, opts.NA) {
			continue
		}
		name := columns[j]
		switch name {
		case KeyRevision:
			rev, err := asInt(value)
			if err != nil {
				return nil, fmt.Errorf("kgforge: %s: %w", KeyRevision, err)
			}
			r.Meta.Revision = rev
			continue
		case KeyDeprecated:
			deprecated, _ := value.(bool)
			r.Meta.Deprecated = deprecated || value == "true"
			continue
		}
		path := strings.Join(strings.Split(name, sep), ".")
		if err := r.Set(path, value); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// WriteCSV writes a header row and one record per row. Missing cells are
// written as na; lists are JSON-encoded.
func (t *Table) WriteCSV(w io.Writer, na string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for j := range record {
			record[j] = na
			if j >= len(row) || row[j] == nil {
				continue
			}
			switch value := row[j].(type) {
			case string:
				record[j] = value
			case []any, map[string]any:
				encoded, err := json.Marshal(value)
				if err != nil {
					return fmt.Errorf("kgforge: encode cell %s: %w", t.Columns[j], err)
				}
				record[j] = string(encoded)
			default:
				record[j] = fmt.Sprint(value)
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV reads a table written by WriteCSV. Cells equal to na become nil and
// JSON arrays are decoded; every other cell stays a string.
func ReadCSV(r io.Reader, na string) (*Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("kgforge: read csv: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	table := &Table{Columns: records[0]}
	for _, record := range records[1:] {
		row := make([]any, len(record))
		for j, raw := range record {
			switch {
			case raw == na:
				row[j] = nil
			case strings.HasPrefix(raw, "["):
				var list []any
				if err := json.Unmarshal([]byte(raw), &list); err == nil {
					row[j] = list
					continue
				}
				row[j] = raw
			default:
				row[j] = raw
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
