package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/querypilot/querypilot/internal/schema"
)

// Provider introspects an SQLite database through sqlite_master and PRAGMA
// statements and maps storage types to the generic DDL vocabulary exposed to
// the generation model.
type Provider struct {
	db *sql.DB
}

func NewProvider(db *sql.DB) *Provider {
	return &Provider{db: db}
}

func (p *Provider) Extract(ctx context.Context) (schema.Description, error) {
	if p.db == nil {
		return schema.Description{}, fmt.Errorf("database handle is required")
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return schema.Description{}, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return schema.Description{}, fmt.Errorf("scan table name: %w", err)
		}
		tableNames = append(tableNames, name)
	}
	if err := rows.Err(); err != nil {
		return schema.Description{}, fmt.Errorf("iterate tables: %w", err)
	}

	desc := schema.Description{Tables: make([]schema.Table, 0, len(tableNames))}
	for _, name := range tableNames {
		table, err := p.describeTable(ctx, name)
		if err != nil {
			return schema.Description{}, err
		}
		desc.Tables = append(desc.Tables, table)
	}
	return desc.Normalize(), nil
}

func (p *Provider) describeTable(ctx context.Context, name string) (schema.Table, error) {
	table := schema.Table{Name: name}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(name)))
	if err != nil {
		return schema.Table{}, fmt.Errorf("table_info %q: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	pkOrder := map[int]string{}
	for rows.Next() {
		var (
			cid          int
			colName      string
			colType      string
			notNull      int
			defaultValue sql.NullString
			pk           int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultValue, &pk); err != nil {
			return schema.Table{}, fmt.Errorf("scan table_info %q: %w", name, err)
		}
		table.Columns = append(table.Columns, schema.Column{
			Name:    colName,
			Type:    mapAffinity(colType),
			NotNull: notNull != 0,
		})
		if pk > 0 {
			pkOrder[pk] = colName
		}
	}
	if err := rows.Err(); err != nil {
		return schema.Table{}, fmt.Errorf("iterate table_info %q: %w", name, err)
	}

	positions := make([]int, 0, len(pkOrder))
	for position := range pkOrder {
		positions = append(positions, position)
	}
	sort.Ints(positions)
	for _, position := range positions {
		table.PrimaryKey = append(table.PrimaryKey, pkOrder[position])
	}

	fks, err := p.foreignKeys(ctx, name)
	if err != nil {
		return schema.Table{}, err
	}
	table.ForeignKeys = fks
	return table, nil
}

func (p *Provider) foreignKeys(ctx context.Context, name string) ([]schema.ForeignKey, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, quoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list %q: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	var fks []schema.ForeignKey
	for rows.Next() {
		var (
			id       int
			seq      int
			refTable string
			from     string
			to       sql.NullString
			onUpdate string
			onDelete string
			match    string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign_key_list %q: %w", name, err)
		}
		refColumn := to.String
		if refColumn == "" {
			// References an implicit primary key; keep the source column name.
			refColumn = from
		}
		fks = append(fks, schema.ForeignKey{Column: from, RefTable: refTable, RefColumn: refColumn})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign_key_list %q: %w", name, err)
	}
	return fks, nil
}

// mapAffinity follows SQLite type-affinity rules so the rendered DDL carries
// stable, model-friendly type names regardless of the declared storage type.
func mapAffinity(declared string) string {
	lower := strings.ToLower(strings.TrimSpace(declared))
	switch {
	case strings.Contains(lower, "int"):
		return "INTEGER"
	case strings.Contains(lower, "bool"):
		return "BOOLEAN"
	case strings.Contains(lower, "char"), strings.Contains(lower, "clob"), strings.Contains(lower, "text"):
		return "TEXT"
	case strings.Contains(lower, "real"), strings.Contains(lower, "floa"),
		strings.Contains(lower, "doub"), strings.Contains(lower, "numeric"),
		strings.Contains(lower, "decimal"):
		return "REAL"
	default:
		// BLOB and date/time declarations have no affinity; TEXT is the safe
		// rendering for the generation model.
		return "TEXT"
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
