// Package sqlcheck statically validates a SQL candidate against a schema
// description before it is allowed anywhere near the live database. It is a
// pure function of its inputs: no I/O, no engine. The check is deliberately
// lexical rather than a full parse; it catches the failure modes a generation
// model actually produces (hallucinated tables and columns, mangled quoting,
// multiple statements, non-SELECT verbs) and reports every distinct error it
// can find instead of stopping at the first.
package sqlcheck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/schema"
)

type Checker struct{}

func New() *Checker {
	return &Checker{}
}

func (c *Checker) Validate(sqlText string, desc schema.Description) pipeline.ValidationOutcome {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return invalid(pipeline.ValidationError{Message: "empty statement", Offset: 0})
	}

	tokens, err := lex(sqlText)
	if err != nil {
		lexErr := err.(*lexError)
		return invalid(pipeline.ValidationError{Message: lexErr.message, Offset: lexErr.offset})
	}
	if len(tokens) == 0 {
		return invalid(pipeline.ValidationError{Message: "empty statement", Offset: 0})
	}

	var errs []pipeline.ValidationError

	if tokens[0].kind != tokenKeyword || (tokens[0].text != "select" && tokens[0].text != "with") {
		errs = append(errs, pipeline.ValidationError{
			Message: "statement must begin with SELECT or WITH",
			Offset:  tokens[0].offset,
		})
	}

	tokens, statementErrs := checkStatementShape(tokens)
	errs = append(errs, statementErrs...)

	refs := collectReferences(tokens)

	for _, tableRef := range refs.tables {
		if _, ok := desc.Table(tableRef.name); !ok {
			errs = append(errs, pipeline.ValidationError{
				Message: fmt.Sprintf("unknown table %q", tableRef.name),
				Offset:  tableRef.offset,
			})
		}
	}

	errs = append(errs, checkColumns(tokens, desc, refs)...)

	if len(errs) == 0 {
		return pipeline.ValidationOutcome{Valid: true}
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Offset < errs[j].Offset })
	return pipeline.ValidationOutcome{Valid: false, Errors: dedupe(errs)}
}

func invalid(errs ...pipeline.ValidationError) pipeline.ValidationOutcome {
	return pipeline.ValidationOutcome{Valid: false, Errors: errs}
}

// checkStatementShape enforces a single statement with balanced parentheses.
// A trailing semicolon is dropped from the returned token stream.
func checkStatementShape(tokens []token) ([]token, []pipeline.ValidationError) {
	var errs []pipeline.ValidationError

	depth := 0
	for _, t := range tokens {
		if t.kind != tokenPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
			if depth < 0 {
				errs = append(errs, pipeline.ValidationError{Message: "unbalanced closing parenthesis", Offset: t.offset})
				depth = 0
			}
		}
	}
	if depth > 0 {
		errs = append(errs, pipeline.ValidationError{Message: "unbalanced opening parenthesis", Offset: tokens[len(tokens)-1].offset})
	}

	for i, t := range tokens {
		if t.kind == tokenPunct && t.text == ";" {
			if i == len(tokens)-1 {
				tokens = tokens[:i]
				break
			}
			errs = append(errs, pipeline.ValidationError{Message: "multiple statements are not allowed", Offset: t.offset})
			tokens = tokens[:i]
			break
		}
	}
	return tokens, errs
}

type tableRef struct {
	name   string
	offset int
}

type references struct {
	// tables are references that must exist in the schema description.
	tables []tableRef
	// aliases maps alias -> real table name.
	aliases map[string]string
	// virtual holds CTE names and subquery aliases; columns behind them are
	// not resolvable statically and are skipped.
	virtual map[string]bool
	// consumed marks token indices used as table names, aliases, or CTE
	// headers so the column pass ignores them.
	consumed map[int]bool
}

// collectReferences walks the token stream once, recording every table named
// after FROM or JOIN (including comma-separated FROM lists), table aliases,
// CTE names, and subquery aliases.
func collectReferences(tokens []token) references {
	refs := references{
		aliases:  map[string]string{},
		virtual:  map[string]bool{},
		consumed: map[int]bool{},
	}

	i := 0
	// CTE prologue: WITH name [(cols)] AS ( ... ) [, name ...]
	if len(tokens) > 0 && tokens[0].kind == tokenKeyword && tokens[0].text == "with" {
		i = 1
		for i < len(tokens) {
			if tokens[i].kind == tokenKeyword && tokens[i].text == "recursive" {
				i++
				continue
			}
			if tokens[i].kind != tokenIdent {
				break
			}
			refs.virtual[strings.ToLower(tokens[i].text)] = true
			refs.consumed[i] = true
			i++
			if i < len(tokens) && isPunct(tokens[i], "(") {
				// column list of the CTE header
				for i < len(tokens) && !isPunct(tokens[i], ")") {
					refs.consumed[i] = true
					i++
				}
				if i < len(tokens) {
					i++
				}
			}
			if i < len(tokens) && tokens[i].kind == tokenKeyword && tokens[i].text == "as" {
				i++
			}
			if i < len(tokens) && isPunct(tokens[i], "(") {
				// The CTE body is scanned by the main loop below for its own
				// FROM clauses; the prologue walk only advances past it.
				depth := 0
				for i < len(tokens) {
					if isPunct(tokens[i], "(") {
						depth++
					}
					if isPunct(tokens[i], ")") {
						depth--
						if depth == 0 {
							break
						}
					}
					i++
				}
				if i < len(tokens) {
					i++
				}
			}
			if i < len(tokens) && isPunct(tokens[i], ",") {
				i++
				continue
			}
			break
		}
	}

	expectTable := false
	inFromList := false
	type pendingSub struct{ depth int }
	var subqueries []pendingSub
	depth := 0

	for i = 0; i < len(tokens); i++ {
		t := tokens[i]

		if t.kind == tokenPunct {
			switch t.text {
			case "(":
				if expectTable {
					subqueries = append(subqueries, pendingSub{depth: depth})
					expectTable = false
				}
				depth++
			case ")":
				depth--
				if n := len(subqueries); n > 0 && subqueries[n-1].depth == depth {
					subqueries = subqueries[:n-1]
					// optional subquery alias
					j := i + 1
					if j < len(tokens) && tokens[j].kind == tokenKeyword && tokens[j].text == "as" {
						refs.consumed[j] = true
						j++
					}
					if j < len(tokens) && tokens[j].kind == tokenIdent {
						refs.virtual[strings.ToLower(tokens[j].text)] = true
						refs.consumed[j] = true
						i = j
					}
				}
			case ",":
				if inFromList {
					expectTable = true
				}
			}
			continue
		}

		if t.kind == tokenKeyword {
			switch t.text {
			case "from", "join":
				expectTable = true
				if t.text == "from" {
					inFromList = true
				}
			case "where", "group", "order", "having", "limit", "offset", "union", "intersect", "except", "on", "using", "select":
				inFromList = false
				expectTable = false
			}
			continue
		}

		if t.kind == tokenIdent && expectTable {
			name := strings.ToLower(t.text)
			refs.consumed[i] = true
			expectTable = false
			appended := false
			if !refs.virtual[name] {
				refs.tables = append(refs.tables, tableRef{name: t.text, offset: t.offset})
				appended = true
			}
			// Dotted schema qualification: only the final component is checked.
			// A dotted reference through a CTE or subquery alias never produced
			// a tables entry and stays opaque.
			for i+2 < len(tokens) && isPunct(tokens[i+1], ".") && tokens[i+2].kind == tokenIdent {
				refs.consumed[i+1] = true
				refs.consumed[i+2] = true
				name = strings.ToLower(tokens[i+2].text)
				if appended {
					refs.tables[len(refs.tables)-1] = tableRef{name: tokens[i+2].text, offset: tokens[i+2].offset}
				}
				i += 2
			}
			// alias: AS ident or bare ident
			j := i + 1
			if j < len(tokens) && tokens[j].kind == tokenKeyword && tokens[j].text == "as" {
				refs.consumed[j] = true
				j++
			}
			if j < len(tokens) && tokens[j].kind == tokenIdent {
				if appended {
					refs.aliases[strings.ToLower(tokens[j].text)] = name
				} else {
					refs.virtual[strings.ToLower(tokens[j].text)] = true
				}
				refs.consumed[j] = true
				i = j
			}
		}
	}
	return refs
}

// checkColumns verifies qualified references against their table and
// unqualified identifiers against the union of referenced tables. References
// through CTEs or subquery aliases are skipped; their shapes are not known
// statically.
func checkColumns(tokens []token, desc schema.Description, refs references) []pipeline.ValidationError {
	var errs []pipeline.ValidationError

	resolve := func(qualifier string) (schema.Table, bool, bool) {
		lower := strings.ToLower(qualifier)
		if refs.virtual[lower] {
			return schema.Table{}, false, true
		}
		if target, ok := refs.aliases[lower]; ok {
			if refs.virtual[target] {
				return schema.Table{}, false, true
			}
			table, ok := desc.Table(target)
			return table, ok, false
		}
		table, ok := desc.Table(lower)
		return table, ok, false
	}

	referencedTables := func() []schema.Table {
		var tables []schema.Table
		for _, ref := range refs.tables {
			if table, ok := desc.Table(ref.name); ok {
				tables = append(tables, table)
			}
		}
		return tables
	}()
	hasVirtual := len(refs.virtual) > 0

	// Select-list aliases (COUNT(*) AS total) are not columns; skip both the
	// definition and later uses such as ORDER BY total.
	outputAliases := map[string]bool{}
	for i := 1; i < len(tokens); i++ {
		if tokens[i].kind == tokenIdent && !refs.consumed[i] &&
			tokens[i-1].kind == tokenKeyword && tokens[i-1].text == "as" {
			outputAliases[strings.ToLower(tokens[i].text)] = true
		}
	}

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.kind != tokenIdent || refs.consumed[i] {
			continue
		}
		if outputAliases[strings.ToLower(t.text)] {
			continue
		}
		if i > 0 && isPunct(tokens[i-1], ".") {
			continue // handled with its qualifier
		}

		// qualified reference: qualifier.column or qualifier.*
		if i+2 < len(tokens) && isPunct(tokens[i+1], ".") {
			next := tokens[i+2]
			if next.kind == tokenPunct && next.text == "*" {
				continue
			}
			if next.kind == tokenIdent {
				table, found, skip := resolve(t.text)
				if skip {
					continue
				}
				if !found {
					errs = append(errs, pipeline.ValidationError{
						Message: fmt.Sprintf("unknown table or alias %q", t.text),
						Offset:  t.offset,
					})
					continue
				}
				if _, ok := table.Column(next.text); !ok {
					errs = append(errs, pipeline.ValidationError{
						Message: fmt.Sprintf("unknown column %q in table %q", next.text, table.Name),
						Offset:  next.offset,
					})
				}
				continue
			}
		}

		// function call
		if i+1 < len(tokens) && isPunct(tokens[i+1], "(") {
			continue
		}

		// unqualified column reference
		if hasVirtual || len(referencedTables) == 0 {
			continue
		}
		found := false
		for _, table := range referencedTables {
			if _, ok := table.Column(t.text); ok {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, pipeline.ValidationError{
				Message: fmt.Sprintf("column %q does not exist in any referenced table", t.text),
				Offset:  t.offset,
			})
		}
	}
	return errs
}

func dedupe(errs []pipeline.ValidationError) []pipeline.ValidationError {
	seen := map[string]bool{}
	out := errs[:0]
	for _, e := range errs {
		if seen[e.Message] {
			continue
		}
		seen[e.Message] = true
		out = append(out, e)
	}
	return out
}

func isPunct(t token, text string) bool {
	return t.kind == tokenPunct && t.text == text
}
