package sqlcheck

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenKeyword
	tokenNumber
	tokenString
	tokenPunct
)

type token struct {
	kind   tokenKind
	text   string // identifiers and keywords are lowercased; quoted identifiers keep their case
	offset int
	quoted bool
}

var keywords = map[string]bool{
	"all": true, "and": true, "as": true, "asc": true, "between": true,
	"by": true, "case": true, "cast": true, "collate": true, "cross": true,
	"current_date": true, "current_time": true, "current_timestamp": true,
	"desc": true, "distinct": true, "else": true, "end": true, "escape": true,
	"except": true, "exists": true, "false": true, "filter": true, "from": true,
	"full": true, "group": true, "having": true, "ilike": true, "in": true,
	"inner": true, "intersect": true, "interval": true, "is": true, "join": true,
	"left": true, "like": true, "limit": true, "natural": true, "not": true,
	"null": true, "offset": true, "on": true, "or": true, "order": true,
	"outer": true, "over": true, "partition": true, "recursive": true,
	"right": true, "select": true,
	"then": true, "true": true, "union": true, "using": true, "values": true,
	"when": true, "where": true, "with": true,
}

// lex splits SQL text into tokens, stripping comments. The returned error
// carries the byte offset of the offending character.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < len(input) && input[i+1] == '-':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(input) && input[i+1] == '*':
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				return nil, &lexError{offset: i, message: "unterminated block comment"}
			}
			i += 2 + end + 2
		case c == '\'':
			start := i
			i++
			for {
				if i >= len(input) {
					return nil, &lexError{offset: start, message: "unterminated string literal"}
				}
				if input[i] == '\'' {
					if i+1 < len(input) && input[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			tokens = append(tokens, token{kind: tokenString, text: input[start:i], offset: start})
		case c == '"':
			start := i
			i++
			for {
				if i >= len(input) {
					return nil, &lexError{offset: start, message: "unterminated quoted identifier"}
				}
				if input[i] == '"' {
					if i+1 < len(input) && input[i+1] == '"' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			text := strings.ReplaceAll(input[start+1:i-1], `""`, `"`)
			tokens = append(tokens, token{kind: tokenIdent, text: text, offset: start, quoted: true})
		case isIdentStart(rune(c)):
			start := i
			for i < len(input) && isIdentPart(rune(input[i])) {
				i++
			}
			word := strings.ToLower(input[start:i])
			kind := tokenIdent
			if keywords[word] {
				kind = tokenKeyword
			}
			tokens = append(tokens, token{kind: kind, text: word, offset: start})
		case c >= '0' && c <= '9':
			start := i
			for i < len(input) && (input[i] >= '0' && input[i] <= '9' || input[i] == '.' || input[i] == 'e' || input[i] == 'E') {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: input[start:i], offset: start})
		default:
			tokens = append(tokens, token{kind: tokenPunct, text: string(c), offset: i})
			i++
		}
	}
	return tokens, nil
}

type lexError struct {
	offset  int
	message string
}

func (e *lexError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.message, e.offset)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
