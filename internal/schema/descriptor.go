// Package schema extracts and caches table metadata from the active
// datasource. The descriptor feeds both the prompt builder and the guard's
// unknown-table check.
package schema

import (
	"fmt"
	"strings"
)

// Column is one column of a table with its declared type.
type Column struct {
	Name string
	Type string
}

// Table is one table with its ordered columns and up to two sample rows,
// pre-formatted for prompt inclusion.
type Table struct {
	Name       string
	Columns    []Column
	SampleRows []string
}

// Descriptor describes the full schema of one datasource generation.
type Descriptor struct {
	Tables []Table

	byName map[string]*Table
}

// NewDescriptor builds a descriptor and indexes tables by lowercased name.
func NewDescriptor(tables []Table) *Descriptor {
	d := &Descriptor{
		Tables: tables,
		byName: make(map[string]*Table, len(tables)),
	}
	for i := range d.Tables {
		d.byName[strings.ToLower(d.Tables[i].Name)] = &d.Tables[i]
	}
	return d
}

// HasTable reports whether the schema contains a table, case-insensitively.
func (d *Descriptor) HasTable(name string) bool {
	_, ok := d.byName[strings.ToLower(name)]
	return ok
}

// TableNames returns the table names in schema order.
func (d *Descriptor) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}

// Summary renders the schema as text for the model prompt: each table with
// its column list and sample data.
func (d *Descriptor) Summary() string {
	var b strings.Builder
	for i, t := range d.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Table: %s\n", t.Name)
		cols := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			cols[j] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
		}
		fmt.Fprintf(&b, "Columns: %s\n", strings.Join(cols, ", "))
		if len(t.SampleRows) > 0 {
			b.WriteString("Sample Data:\n")
			for j, row := range t.SampleRows {
				fmt.Fprintf(&b, "  Row %d: (%s)\n", j+1, row)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
