package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang-ledger-service/pkg/errors"
	"golang-ledger-service/pkg/logger"
)

// SkippedRow records one data row that could not be parsed, with enough
// context to act on without re-reading the source file.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// ImportStats summarizes an import run over one CSV file.
type ImportStats struct {
	RowsSeen            int          `json:"rows_seen"`
	RowsParsed          int          `json:"rows_parsed"`
	Skipped             []SkippedRow `json:"skipped,omitempty"`
	UnrecognizedHeaders []string     `json:"unrecognized_headers,omitempty"`
}

// SkippedCount returns the number of rows that were skipped.
func (s *ImportStats) SkippedCount() int {
	return len(s.Skipped)
}

// String returns a human-readable summary of the import statistics.
func (s *ImportStats) String() string {
	return fmt.Sprintf("Saw %d rows, parsed %d, skipped %d",
		s.RowsSeen, s.RowsParsed, s.SkippedCount())
}

// ImportResult holds the parsed records of an import in input order plus
// the run statistics.
type ImportResult struct {
	Records []*Record
	Stats   ImportStats
}

// ImportPipeline drives the header resolver and record parser over a full
// CSV file. Header-resolution failures abort the import; row-level parse
// failures are recorded and skipped so one bad row never loses the rest of
// the file.
type ImportPipeline struct {
	logger logger.Logger
}

// NewImportPipeline creates an ImportPipeline.
func NewImportPipeline() *ImportPipeline {
	return &ImportPipeline{
		logger: logger.GetGlobalLogger().WithComponent("import_pipeline"),
	}
}

// Run parses a UTF-8 CSV stream into transaction records for the given
// account. Row 0 is always treated as the header row. Every successfully
// parsed record has accountID assigned; persistence (including duplicate
// detection) is left to the caller.
func (ip *ImportPipeline) Run(r io.Reader, accountID int64) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // banks pad or truncate rows freely

	result := &ImportResult{}

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New(
				errors.CategoryParse,
				errors.CodeMissingHeader,
				"file is empty: no header row",
			).WithSuggestion("ensure the export contains a header row and data rows")
		}
		return nil, errors.Wrap(err, errors.CategoryParse, errors.CodeBadRow, "cannot read header row")
	}

	resolution, err := ResolveHeaders(header)
	if err != nil {
		ip.logger.WithError(err).Error("Header resolution failed, aborting import")
		return nil, err
	}
	result.Stats.UnrecognizedHeaders = resolution.Unrecognized
	for _, h := range resolution.Unrecognized {
		ip.logger.WithField("header", h).Debug("Ignoring unrecognized header")
	}

	// Line numbers are physical positions in the file, counted with the
	// header as line 0, so diagnostics match what a user sees in an
	// editor.
	headerLine, _ := reader.FieldPos(0)

	prevLine := headerLine
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}

		physical := prevLine + 1
		if err == nil {
			physical, _ = reader.FieldPos(0)
		} else if parseErr, ok := err.(*csv.ParseError); ok {
			physical = parseErr.Line
		}

		// The csv reader swallows fully blank lines, so a gap in the
		// physical line numbers means blank lines sat between records.
		// Each one is an empty row at its own position.
		for blank := prevLine + 1; blank < physical; blank++ {
			result.Stats.RowsSeen++
			ip.skip(result, blank-headerLine, "empty row",
				errors.New(errors.CategoryParse, errors.CodeEmptyRow,
					fmt.Sprintf("line %d: unexpected empty row", blank-headerLine)))
		}
		prevLine = physical
		line := physical - headerLine

		result.Stats.RowsSeen++
		if err != nil {
			ip.skip(result, line, "unreadable row", err)
			continue
		}

		if isEmptyRow(cells) {
			ip.skip(result, line, "empty row",
				errors.New(errors.CategoryParse, errors.CodeEmptyRow,
					fmt.Sprintf("line %d: unexpected empty row", line)))
			continue
		}

		rec, err := ParseRecord(resolution.Mapping, line, cells)
		if err != nil {
			ip.skip(result, line, "unparseable row", err)
			continue
		}

		rec.Tx.AccountID = accountID
		result.Records = append(result.Records, rec)
		result.Stats.RowsParsed++
	}

	ip.logger.WithFields(logger.Fields{
		"account_id":  accountID,
		"rows_seen":   result.Stats.RowsSeen,
		"rows_parsed": result.Stats.RowsParsed,
		"skipped":     result.Stats.SkippedCount(),
	}).Info("Import parsing completed")

	return result, nil
}

func (ip *ImportPipeline) skip(result *ImportResult, line int, reason string, err error) {
	ip.logger.WithError(err).WithField("line", line).Warn("Skipping row")
	result.Stats.Skipped = append(result.Stats.Skipped, SkippedRow{
		Line:   line,
		Reason: fmt.Sprintf("%s: %v", reason, err),
		Err:    err,
	})
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
