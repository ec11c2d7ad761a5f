package sqlite

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A pooled :memory: database is per-connection; keep a single connection
	// so the introspection queries see the created tables.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestExtractFilmSchema(t *testing.T) {
	db := openTestDB(t)
	statements := []string{
		`CREATE TABLE film (
			film_id INTEGER PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			rental_rate NUMERIC(4,2)
		)`,
		`CREATE TABLE category (
			category_id INTEGER PRIMARY KEY,
			name VARCHAR(25) NOT NULL
		)`,
		`CREATE TABLE film_category (
			film_id INTEGER NOT NULL,
			category_id INTEGER NOT NULL,
			PRIMARY KEY (film_id, category_id),
			FOREIGN KEY (film_id) REFERENCES film (film_id),
			FOREIGN KEY (category_id) REFERENCES category (category_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	desc, err := NewProvider(db).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(desc.Tables) != 3 {
		t.Fatalf("len(Tables) = %d", len(desc.Tables))
	}
	// Normalize orders tables by name.
	wantOrder := []string{"category", "film", "film_category"}
	for i, name := range wantOrder {
		if desc.Tables[i].Name != name {
			t.Fatalf("Tables[%d].Name = %q, want %q", i, desc.Tables[i].Name, name)
		}
	}

	film, ok := desc.Table("film")
	if !ok {
		t.Fatal("film table missing")
	}
	title, ok := film.Column("title")
	if !ok {
		t.Fatal("film.title missing")
	}
	if title.Type != "TEXT" {
		t.Fatalf("film.title Type = %q", title.Type)
	}
	if !title.NotNull {
		t.Fatal("film.title should be NOT NULL")
	}
	rate, _ := film.Column("rental_rate")
	if rate.Type != "REAL" {
		t.Fatalf("film.rental_rate Type = %q", rate.Type)
	}

	junction, _ := desc.Table("film_category")
	if len(junction.PrimaryKey) != 2 {
		t.Fatalf("film_category PrimaryKey = %v", junction.PrimaryKey)
	}
	if len(junction.ForeignKeys) != 2 {
		t.Fatalf("film_category ForeignKeys = %v", junction.ForeignKeys)
	}
	for _, fk := range junction.ForeignKeys {
		if fk.RefTable != "film" && fk.RefTable != "category" {
			t.Fatalf("unexpected foreign key target %q", fk.RefTable)
		}
	}
}

func TestExtractIsByteStableAcrossRuns(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec(`CREATE TABLE actor (actor_id INTEGER PRIMARY KEY, last_name TEXT NOT NULL)`); err != nil {
		t.Fatalf("exec: %v", err)
	}

	provider := NewProvider(db)
	first, err := provider.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := provider.Extract(context.Background())
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if again.DDL() != first.DDL() {
			t.Fatalf("DDL changed between extractions:\n%s\nvs\n%s", again.DDL(), first.DDL())
		}
	}
}

func TestMapAffinity(t *testing.T) {
	cases := []struct {
		declared string
		want     string
	}{
		{"INTEGER", "INTEGER"},
		{"int", "INTEGER"},
		{"SMALLINT UNSIGNED", "INTEGER"},
		{"BOOLEAN", "BOOLEAN"},
		{"VARCHAR(255)", "TEXT"},
		{"CLOB", "TEXT"},
		{"NUMERIC(4,2)", "REAL"},
		{"DOUBLE PRECISION", "REAL"},
		{"BLOB", "TEXT"},
		{"DATETIME", "TEXT"},
	}
	for _, tc := range cases {
		if got := mapAffinity(tc.declared); got != tc.want {
			t.Fatalf("mapAffinity(%q) = %q, want %q", tc.declared, got, tc.want)
		}
	}
}
