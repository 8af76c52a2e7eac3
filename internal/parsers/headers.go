// Package parsers turns bank-statement CSV exports into transaction
// records.
//
// Bank exports disagree on column names ("Posting Date" vs "Post Date"),
// on which optional columns are present, and frequently contain malformed
// rows. The package copes with all three: a header resolver maps raw
// column names onto a closed set of canonical fields, a record parser
// builds one transaction per data row, and an import pipeline drives both
// over a whole file with partial-success semantics (bad rows are skipped
// and reported, never abort the import).
package parsers

import (
	"strings"

	"golang-ledger-service/pkg/errors"
)

// Field identifies a canonical transaction attribute a CSV column can map
// to.
type Field string

const (
	// Essential fields: a file whose header lacks any of these cannot be
	// imported at all.
	FieldPostingDate Field = "posting_date"
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"

	// Optional hint fields.
	FieldInitDate Field = "init_date"
	FieldType     Field = "type"
	FieldCategory Field = "category"
	FieldBalance  Field = "balance"
)

// essentialFields are required in every header row, in reporting order.
var essentialFields = []Field{FieldPostingDate, FieldDescription, FieldAmount}

// headerAliases maps lowercased raw header names to canonical fields.
// Matching is exact (after lowercasing); fuzzy matching would risk mapping
// unrelated columns onto essential fields.
var headerAliases = map[string]Field{
	"transaction date": FieldInitDate,
	"posting date":     FieldPostingDate,
	"post date":        FieldPostingDate,
	"description":      FieldDescription,
	"amount":           FieldAmount,
	"type":             FieldType,
	"balance":          FieldBalance,
	"category":         FieldCategory,
}

// HeaderMapping maps canonical fields to their column index in the file.
type HeaderMapping map[Field]int

// Has reports whether the mapping contains the given canonical field.
func (m HeaderMapping) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// HeaderResolution is the result of resolving a header row: the mapping
// plus the raw headers that matched nothing (kept for diagnostics).
type HeaderResolution struct {
	Mapping      HeaderMapping
	Unrecognized []string
}

// ResolveHeaders maps the raw header row of a CSV onto canonical fields.
//
// Unrecognized headers are collected, not rejected. Two raw headers
// resolving to the same canonical field is a fatal conflict, and a header
// row missing any essential field fails immediately so the import can be
// rejected before any data row is parsed.
func ResolveHeaders(raw []string) (*HeaderResolution, error) {
	res := &HeaderResolution{Mapping: make(HeaderMapping)}
	rawByField := make(map[Field]string)

	for idx, header := range raw {
		key := strings.ToLower(strings.TrimSpace(header))
		field, ok := headerAliases[key]
		if !ok {
			res.Unrecognized = append(res.Unrecognized, header)
			continue
		}
		if prev, seen := rawByField[field]; seen {
			return nil, errors.HeaderConflictError(header, prev, string(field))
		}
		rawByField[field] = header
		res.Mapping[field] = idx
	}

	var missing []string
	for _, f := range essentialFields {
		if !res.Mapping.Has(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return nil, errors.MissingHeaderError(missing)
	}

	return res, nil
}
