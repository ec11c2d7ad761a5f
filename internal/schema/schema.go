package schema

import (
	"context"
	"sort"
	"strings"
)

// Column order follows the database catalog so repeated extraction of an
// unchanged database renders byte-identical DDL.
type Column struct {
	Name    string
	Type    string
	NotNull bool
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

type Description struct {
	Tables []Table
}

type Provider interface {
	Extract(ctx context.Context) (Description, error)
}

func (d Description) Table(name string) (Table, bool) {
	for _, table := range d.Tables {
		if strings.EqualFold(table.Name, name) {
			return table, true
		}
	}
	return Table{}, false
}

func (t Table) Column(name string) (Column, bool) {
	for _, column := range t.Columns {
		if strings.EqualFold(column.Name, name) {
			return column, true
		}
	}
	return Column{}, false
}

// Normalize sorts tables by name. Providers call it once after extraction;
// column order inside a table is preserved.
func (d Description) Normalize() Description {
	tables := make([]Table, len(d.Tables))
	copy(tables, d.Tables)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return Description{Tables: tables}
}

// DDL renders the description as CREATE TABLE text for prompt consumption.
// Rendering is deterministic: table order and column order are fixed by the
// description itself.
func (d Description) DDL() string {
	parts := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		parts = append(parts, renderTable(table))
	}
	return strings.Join(parts, "\n\n")
}

func renderTable(table Table) string {
	lines := make([]string, 0, len(table.Columns)+len(table.ForeignKeys)+1)
	for _, column := range table.Columns {
		line := "  " + quoteIdent(column.Name) + " " + column.Type
		if column.NotNull {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}
	if len(table.PrimaryKey) > 0 {
		quoted := make([]string, 0, len(table.PrimaryKey))
		for _, name := range table.PrimaryKey {
			quoted = append(quoted, quoteIdent(name))
		}
		lines = append(lines, "  PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	for _, fk := range table.ForeignKeys {
		lines = append(lines,
			"  FOREIGN KEY ("+quoteIdent(fk.Column)+") REFERENCES "+quoteIdent(fk.RefTable)+" ("+quoteIdent(fk.RefColumn)+")")
	}
	return "CREATE TABLE " + quoteIdent(table.Name) + " (\n" + strings.Join(lines, ",\n") + "\n);"
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
