package parsers

import (
	"strings"

	"golang-ledger-service/internal/models"
	"golang-ledger-service/pkg/errors"
)

// Record is one successfully parsed data row. The embedded transaction has
// no account or category assigned; the import pipeline fills in the
// account and downstream persistence owns the rest. The hint fields carry
// optional columns that are informational only and never persisted.
type Record struct {
	Line         int
	Tx           models.Transaction
	TypeHint     string
	CategoryHint string
	BalanceHint  string
}

// ParseRecord builds a Record from one CSV data row using a resolved
// header mapping. line is the zero-based row number within the file (the
// header row is line 0) and is carried into every error for diagnostics.
func ParseRecord(mapping HeaderMapping, line int, cells []string) (*Record, error) {
	// cell returns the value of an optional field; a field that is not
	// mapped or lies beyond a short row reads as absent.
	cell := func(f Field) (string, bool) {
		idx, ok := mapping[f]
		if !ok || idx >= len(cells) {
			return "", false
		}
		return cells[idx], true
	}

	// require reads an essential field; a row too short to hold it is a
	// parse error.
	require := func(f Field) (string, error) {
		idx := mapping[f]
		if idx >= len(cells) {
			return "", errors.ShortRowError(line, idx, len(cells))
		}
		return cells[idx], nil
	}

	dateStr, err := require(FieldPostingDate)
	if err != nil {
		return nil, err
	}
	description, err := require(FieldDescription)
	if err != nil {
		return nil, err
	}
	amountStr, err := require(FieldAmount)
	if err != nil {
		return nil, err
	}

	postDate, err := models.ParsePostingDate(dateStr)
	if err != nil {
		return nil, errors.DateFormatError(line, dateStr, err)
	}

	amount, err := models.ParseAmount(amountStr)
	if err != nil {
		return nil, errors.AmountFormatError(line, amountStr, err)
	}

	rec := &Record{
		Line: line,
		Tx: models.Transaction{
			PostDate:    postDate,
			Description: description,
			Amount:      amount,
		},
	}

	// Optional init date: an empty cell reads as absent, but a
	// present-and-malformed value still fails the row.
	if initStr, ok := cell(FieldInitDate); ok && strings.TrimSpace(initStr) != "" {
		initDate, err := models.ParsePostingDate(initStr)
		if err != nil {
			return nil, errors.DateFormatError(line, initStr, err)
		}
		rec.Tx.InitDate = &initDate
	}

	rec.TypeHint, _ = cell(FieldType)
	rec.CategoryHint, _ = cell(FieldCategory)
	rec.BalanceHint, _ = cell(FieldBalance)

	return rec, nil
}
