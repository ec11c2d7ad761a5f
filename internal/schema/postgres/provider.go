package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/querypilot/querypilot/internal/schema"
)

// Provider introspects the public schema of a PostgreSQL database through
// information_schema. Queries are ordered so repeated extraction of an
// unchanged database yields identical descriptions.
type Provider struct {
	db *sql.DB
}

func NewProvider(db *sql.DB) *Provider {
	return &Provider{db: db}
}

const listTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
ORDER BY table_name`

const listColumnsSQL = `
SELECT column_name, udt_name, is_nullable
FROM information_schema.columns
WHERE table_schema = 'public' AND table_name = $1
ORDER BY ordinal_position`

const listPrimaryKeySQL = `
SELECT kcu.column_name
FROM information_schema.table_constraints AS tc
JOIN information_schema.key_column_usage AS kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public' AND tc.table_name = $1
ORDER BY kcu.ordinal_position`

const listForeignKeysSQL = `
SELECT kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints AS tc
JOIN information_schema.key_column_usage AS kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage AS ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public' AND tc.table_name = $1
ORDER BY kcu.ordinal_position`

func (p *Provider) Extract(ctx context.Context) (schema.Description, error) {
	if p.db == nil {
		return schema.Description{}, fmt.Errorf("database handle is required")
	}

	rows, err := p.db.QueryContext(ctx, listTablesSQL)
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

	columnRows, err := p.db.QueryContext(ctx, listColumnsSQL, name)
	if err != nil {
		return schema.Table{}, fmt.Errorf("list columns %q: %w", name, err)
	}
	defer func() { _ = columnRows.Close() }()
	for columnRows.Next() {
		var colName, udtName, isNullable string
		if err := columnRows.Scan(&colName, &udtName, &isNullable); err != nil {
			return schema.Table{}, fmt.Errorf("scan column %q: %w", name, err)
		}
		table.Columns = append(table.Columns, schema.Column{
			Name:    colName,
			Type:    mapUDTName(udtName),
			NotNull: isNullable == "NO",
		})
	}
	if err := columnRows.Err(); err != nil {
		return schema.Table{}, fmt.Errorf("iterate columns %q: %w", name, err)
	}

	pkRows, err := p.db.QueryContext(ctx, listPrimaryKeySQL, name)
	if err != nil {
		return schema.Table{}, fmt.Errorf("list primary key %q: %w", name, err)
	}
	defer func() { _ = pkRows.Close() }()
	for pkRows.Next() {
		var colName string
		if err := pkRows.Scan(&colName); err != nil {
			return schema.Table{}, fmt.Errorf("scan primary key %q: %w", name, err)
		}
		table.PrimaryKey = append(table.PrimaryKey, colName)
	}
	if err := pkRows.Err(); err != nil {
		return schema.Table{}, fmt.Errorf("iterate primary key %q: %w", name, err)
	}

	fkRows, err := p.db.QueryContext(ctx, listForeignKeysSQL, name)
	if err != nil {
		return schema.Table{}, fmt.Errorf("list foreign keys %q: %w", name, err)
	}
	defer func() { _ = fkRows.Close() }()
	for fkRows.Next() {
		var column, refTable, refColumn string
		if err := fkRows.Scan(&column, &refTable, &refColumn); err != nil {
			return schema.Table{}, fmt.Errorf("scan foreign key %q: %w", name, err)
		}
		table.ForeignKeys = append(table.ForeignKeys, schema.ForeignKey{
			Column:    column,
			RefTable:  refTable,
			RefColumn: refColumn,
		})
	}
	if err := fkRows.Err(); err != nil {
		return schema.Table{}, fmt.Errorf("iterate foreign keys %q: %w", name, err)
	}

	return table, nil
}

func mapUDTName(udtName string) string {
	lower := strings.ToLower(strings.TrimSpace(udtName))
	switch {
	case strings.Contains(lower, "int"):
		return "INTEGER"
	case strings.Contains(lower, "char"), strings.Contains(lower, "text"):
		return "TEXT"
	case strings.Contains(lower, "numeric"), strings.Contains(lower, "decimal"),
		strings.Contains(lower, "real"), strings.Contains(lower, "float"),
		strings.Contains(lower, "double"):
		return "NUMERIC"
	case strings.HasPrefix(lower, "timestamp"):
		return "TIMESTAMP"
	case strings.Contains(lower, "date"):
		return "DATE"
	case strings.Contains(lower, "bool"):
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}
