package schema

import (
	"strings"
	"unicode"

	"github.com/latticedb/lattice/lerr"
)

// ParseTable parses one table's definition string per the grammar in
// spec.md §6: comma-separated tokens, first token the primary key, the
// rest secondary indexes. Token prefixes: "++" auto-increment, "&" unique;
// a compound index is written "[fieldA+fieldB+...]".
func ParseTable(name, def string) (TableSchema, error) {
	tokens := splitTokens(def)
	if len(tokens) == 0 || strings.TrimSpace(tokens[0]) == "" && len(tokens) == 1 {
		return TableSchema{}, lerr.New(lerr.KindSchema, "empty schema for table "+name)
	}

	pk, err := parseToken(strings.TrimSpace(tokens[0]), true)
	if err != nil {
		return TableSchema{}, err
	}
	pk.IsPrimaryKey = true
	pk.Unique = true

	table := TableSchema{Name: name, PrimaryKey: pk}
	for _, raw := range tokens[1:] {
		tok := strings.TrimSpace(raw)
		idx, err := parseToken(tok, false)
		if err != nil {
			return TableSchema{}, err
		}
		table.Indexes = append(table.Indexes, idx)
	}

	if err := table.Validate(); err != nil {
		return TableSchema{}, err
	}
	return table, nil
}

func splitTokens(def string) []string {
	if strings.TrimSpace(def) == "" {
		return nil
	}
	return strings.Split(def, ",")
}

// parseToken parses one token: ("++")? ("&")? (NAME | "[" NAME ("+" NAME)+ "]")?
func parseToken(tok string, isPrimary bool) (IndexSpec, error) {
	spec := IndexSpec{}

	if strings.HasPrefix(tok, "++") {
		spec.AutoIncrement = true
		tok = tok[2:]
	}
	if strings.HasPrefix(tok, "&") {
		spec.Unique = true
		tok = tok[1:]
	}

	switch {
	case tok == "":
		if !isPrimary {
			return IndexSpec{}, lerr.New(lerr.KindSchema, "empty index name is only allowed for the primary key")
		}
		spec.Outbound = true
		return spec, nil

	case strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]"):
		body := tok[1 : len(tok)-1]
		if body == "" {
			return IndexSpec{}, lerr.New(lerr.KindSchema, "empty compound index body")
		}
		fields := strings.Split(body, "+")
		if len(fields) < 2 {
			return IndexSpec{}, lerr.New(lerr.KindSchema, "compound index needs at least 2 fields")
		}
		for _, f := range fields {
			if !isIdentifier(f) {
				return IndexSpec{}, lerr.New(lerr.KindSchema, "invalid identifier in compound index: "+f)
			}
		}
		spec.KeyPath = fields
		spec.Compound = true
		spec.Name = "[" + strings.Join(fields, "+") + "]"
		return spec, nil

	default:
		if !isIdentifier(tok) {
			return IndexSpec{}, lerr.New(lerr.KindSchema, "invalid identifier: "+tok)
		}
		spec.KeyPath = []string{tok}
		spec.Name = tok
		return spec, nil
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// ParseDatabase parses a table-name → definition-string map into a
// DatabaseSchema, as produced by the db.Version(...).Stores(...) DSL.
func ParseDatabase(defs map[string]string) (DatabaseSchema, error) {
	out := make(DatabaseSchema, len(defs))
	for name, def := range defs {
		t, err := ParseTable(name, def)
		if err != nil {
			return nil, err
		}
		out[name] = t
	}
	return out, nil
}
