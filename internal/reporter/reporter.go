// Package reporter renders import summaries and categorization run results
// for the CLI.
//
// Supported output formats:
//   - Console: human-readable output for terminal display
//   - JSON: structured output for programmatic consumption
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang-ledger-service/internal/ledger"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON:
		return true
	default:
		return false
	}
}

// Reporter writes reports to a destination writer.
type Reporter struct {
	format OutputFormat
	out    io.Writer
}

// New creates a Reporter for the given format and destination.
func New(format OutputFormat, out io.Writer) (*Reporter, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("invalid output format: %s", format)
	}
	return &Reporter{format: format, out: out}, nil
}

// WriteImportSummary renders one import's outcome.
func (r *Reporter) WriteImportSummary(summary *ledger.ImportSummary) error {
	if r.format == FormatJSON {
		return r.writeJSON(summary)
	}

	var b strings.Builder
	b.WriteString("Import Summary\n")
	b.WriteString("==============\n")
	fmt.Fprintf(&b, "Run:        %s\n", summary.RunID)
	fmt.Fprintf(&b, "Account:    %d\n", summary.AccountID)
	fmt.Fprintf(&b, "File:       %d\n", summary.FileID)
	fmt.Fprintf(&b, "Rows seen:  %d\n", summary.RowsSeen)
	fmt.Fprintf(&b, "Parsed:     %d\n", summary.RowsParsed)
	fmt.Fprintf(&b, "Inserted:   %d\n", summary.Inserted)
	fmt.Fprintf(&b, "Duplicates: %d\n", summary.Duplicates)

	if len(summary.Skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped rows (%d):\n", len(summary.Skipped))
		for _, row := range summary.Skipped {
			fmt.Fprintf(&b, "  line %d: %s\n", row.Line, row.Reason)
		}
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

// WriteRunResult renders one categorization run's outcome.
func (r *Reporter) WriteRunResult(result *ledger.RunResult) error {
	if r.format == FormatJSON {
		return r.writeJSON(result)
	}

	mode := "commit"
	if result.Preview {
		mode = "preview"
	}

	var b strings.Builder
	b.WriteString("Categorization Run\n")
	b.WriteString("==================\n")
	fmt.Fprintf(&b, "Run:     %s\n", result.RunID)
	fmt.Fprintf(&b, "Account: %d\n", result.AccountID)
	fmt.Fprintf(&b, "Mode:    %s\n", mode)
	fmt.Fprintf(&b, "Applied: %d\n", result.Applied)

	if len(result.Reassignments) > 0 {
		fmt.Fprintf(&b, "\nReassignments (%d):\n", len(result.Reassignments))
		for _, re := range result.Reassignments {
			fmt.Fprintf(&b, "  transaction %d: %s -> %s\n",
				re.TransactionID, re.OldCategory, re.NewCategory)
		}
	} else {
		b.WriteString("\nNo transactions matched.\n")
	}

	if len(result.SkippedRules) > 0 {
		fmt.Fprintf(&b, "\nSkipped rules (%d):\n", len(result.SkippedRules))
		for _, sr := range result.SkippedRules {
			fmt.Fprintf(&b, "  rule %d: %s\n", sr.RuleID, sr.Reason)
		}
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Reporter) writeJSON(v interface{}) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
