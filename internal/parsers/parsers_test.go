package parsers

import (
	"strings"
	"testing"

	"golang-ledger-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func TestResolveHeaders(t *testing.T) {
	res, err := ResolveHeaders([]string{"Transaction Date", "Posting Date", "Description", "Amount", "Type", "Balance"})
	if err != nil {
		t.Fatalf("Expected headers to resolve, got error: %v", err)
	}

	expected := map[Field]int{
		FieldInitDate:    0,
		FieldPostingDate: 1,
		FieldDescription: 2,
		FieldAmount:      3,
		FieldType:        4,
		FieldBalance:     5,
	}
	for field, idx := range expected {
		got, ok := res.Mapping[field]
		if !ok {
			t.Errorf("Expected field %s to be mapped", field)
			continue
		}
		if got != idx {
			t.Errorf("Expected field %s at index %d, got %d", field, idx, got)
		}
	}
	if len(res.Unrecognized) != 0 {
		t.Errorf("Expected no unrecognized headers, got %v", res.Unrecognized)
	}
}

func TestResolveHeaders_CaseAndWhitespace(t *testing.T) {
	res, err := ResolveHeaders([]string{" POSTING DATE ", "description", "AMOUNT"})
	if err != nil {
		t.Fatalf("Expected headers to resolve, got error: %v", err)
	}
	if !res.Mapping.Has(FieldPostingDate) || !res.Mapping.Has(FieldDescription) || !res.Mapping.Has(FieldAmount) {
		t.Errorf("Expected all essential fields mapped, got %v", res.Mapping)
	}
}

func TestResolveHeaders_Conflict(t *testing.T) {
	_, err := ResolveHeaders([]string{"Posting Date", "Post Date", "Description", "Amount"})
	if err == nil {
		t.Fatal("Expected a conflict error for two posting date headers")
	}
	if !errors.HasCode(err, errors.CodeHeaderConflict) {
		t.Errorf("Expected header_conflict code, got %v", err)
	}

	ledgerErr, _ := errors.AsLedgerError(err)
	msg := ledgerErr.Message
	if !strings.Contains(msg, "Posting Date") || !strings.Contains(msg, "Post Date") {
		t.Errorf("Expected conflict error to name both raw headers, got %q", msg)
	}
}

func TestResolveHeaders_MissingEssential(t *testing.T) {
	_, err := ResolveHeaders([]string{"Posting Date", "Description"})
	if err == nil {
		t.Fatal("Expected an error for a header row without amount")
	}
	if !errors.HasCode(err, errors.CodeMissingHeader) {
		t.Errorf("Expected missing_header code, got %v", err)
	}
	if !strings.Contains(err.Error(), "amount") {
		t.Errorf("Expected error to name the missing field, got %q", err.Error())
	}
}

func TestResolveHeaders_UnrecognizedIgnored(t *testing.T) {
	res, err := ResolveHeaders([]string{"Posting Date", "Description", "Amount", "Check Number"})
	if err != nil {
		t.Fatalf("Expected unrecognized headers to be tolerated, got error: %v", err)
	}
	if len(res.Unrecognized) != 1 || res.Unrecognized[0] != "Check Number" {
		t.Errorf("Expected [Check Number] unrecognized, got %v", res.Unrecognized)
	}
}

func testMapping() HeaderMapping {
	return HeaderMapping{
		FieldPostingDate: 0,
		FieldDescription: 1,
		FieldAmount:      2,
	}
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord(testMapping(), 1, []string{"01/15/2024", "STARBUCKS COFFEE #123", "-4.50"})
	if err != nil {
		t.Fatalf("Expected record to parse, got error: %v", err)
	}

	if rec.Tx.PostDate.Format("2006-01-02") != "2024-01-15" {
		t.Errorf("Expected post date 2024-01-15, got %s", rec.Tx.PostDate.Format("2006-01-02"))
	}
	if rec.Tx.Description != "STARBUCKS COFFEE #123" {
		t.Errorf("Expected description to be carried verbatim, got %q", rec.Tx.Description)
	}
	if !rec.Tx.Amount.Equal(decimal.RequireFromString("-4.50")) {
		t.Errorf("Expected amount -4.50, got %s", rec.Tx.Amount.String())
	}
}

func TestParseRecord_BadDate(t *testing.T) {
	_, err := ParseRecord(testMapping(), 3, []string{"2024-01-15", "COFFEE", "-4.50"})
	if err == nil {
		t.Fatal("Expected an ISO date to be rejected under the MM/DD/YYYY layout")
	}
	if !errors.HasCode(err, errors.CodeBadDate) {
		t.Errorf("Expected bad_date code, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("Expected error to reference line 3, got %q", err.Error())
	}
}

func TestParseRecord_BadAmount(t *testing.T) {
	_, err := ParseRecord(testMapping(), 2, []string{"01/15/2024", "COFFEE", "$4.50"})
	if err == nil {
		t.Fatal("Expected a currency-prefixed amount to be rejected")
	}
	if !errors.HasCode(err, errors.CodeBadAmount) {
		t.Errorf("Expected bad_amount code, got %v", err)
	}
}

func TestParseRecord_ShortRow(t *testing.T) {
	_, err := ParseRecord(testMapping(), 4, []string{"01/15/2024", "COFFEE"})
	if err == nil {
		t.Fatal("Expected a row missing the amount cell to be rejected")
	}
	if !errors.HasCode(err, errors.CodeShortRow) {
		t.Errorf("Expected short_row code, got %v", err)
	}
}

func TestParseRecord_OptionalInitDate(t *testing.T) {
	mapping := testMapping()
	mapping[FieldInitDate] = 3

	rec, err := ParseRecord(mapping, 1, []string{"01/15/2024", "COFFEE", "-4.50", "01/14/2024"})
	if err != nil {
		t.Fatalf("Expected record to parse, got error: %v", err)
	}
	if rec.Tx.InitDate == nil {
		t.Fatal("Expected init date to be set")
	}
	if rec.Tx.InitDate.Format("01/02/2006") != "01/14/2024" {
		t.Errorf("Expected init date 01/14/2024, got %s", rec.Tx.InitDate.Format("01/02/2006"))
	}

	// Empty init date cell reads as absent.
	rec, err = ParseRecord(mapping, 2, []string{"01/15/2024", "COFFEE", "-4.50", ""})
	if err != nil {
		t.Fatalf("Expected empty init date to be tolerated, got error: %v", err)
	}
	if rec.Tx.InitDate != nil {
		t.Error("Expected empty init date cell to read as absent")
	}

	// Malformed init date still fails the row.
	_, err = ParseRecord(mapping, 3, []string{"01/15/2024", "COFFEE", "-4.50", "yesterday"})
	if !errors.HasCode(err, errors.CodeBadDate) {
		t.Errorf("Expected bad_date for malformed init date, got %v", err)
	}
}

func TestParseRecord_HintFields(t *testing.T) {
	mapping := testMapping()
	mapping[FieldType] = 3
	mapping[FieldBalance] = 4

	rec, err := ParseRecord(mapping, 1, []string{"01/15/2024", "COFFEE", "-4.50", "DEBIT", "120.00"})
	if err != nil {
		t.Fatalf("Expected record to parse, got error: %v", err)
	}
	if rec.TypeHint != "DEBIT" {
		t.Errorf("Expected type hint DEBIT, got %q", rec.TypeHint)
	}
	if rec.BalanceHint != "120.00" {
		t.Errorf("Expected balance hint 120.00, got %q", rec.BalanceHint)
	}
}

func TestImportPipeline_PartialFailure(t *testing.T) {
	csvData := strings.Join([]string{
		"Posting Date,Description,Amount",
		"01/15/2024,STARBUCKS COFFEE,-4.50",
		"01/16/2024,GROCERY STORE,-52.10",
		"not-a-date,BROKEN ROW,-1.00",
		"01/17/2024,PAYCHECK,1500.00",
	}, "\n")

	result, err := NewImportPipeline().Run(strings.NewReader(csvData), 7)
	if err != nil {
		t.Fatalf("Expected partial-success import, got error: %v", err)
	}

	if result.Stats.RowsSeen != 4 {
		t.Errorf("Expected 4 rows seen, got %d", result.Stats.RowsSeen)
	}
	if result.Stats.RowsParsed != 3 {
		t.Errorf("Expected 3 rows parsed, got %d", result.Stats.RowsParsed)
	}
	if len(result.Records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(result.Records))
	}
	if result.Stats.SkippedCount() != 1 {
		t.Fatalf("Expected 1 skipped row, got %d", result.Stats.SkippedCount())
	}
	if result.Stats.Skipped[0].Line != 3 {
		t.Errorf("Expected skipped row at line 3, got line %d", result.Stats.Skipped[0].Line)
	}

	for i, rec := range result.Records {
		if rec.Tx.AccountID != 7 {
			t.Errorf("Expected record %d to carry account 7, got %d", i, rec.Tx.AccountID)
		}
	}

	// Input order is preserved.
	if result.Records[0].Tx.Description != "STARBUCKS COFFEE" ||
		result.Records[2].Tx.Description != "PAYCHECK" {
		t.Errorf("Expected records in input order, got %q .. %q",
			result.Records[0].Tx.Description, result.Records[2].Tx.Description)
	}
}

func TestImportPipeline_HeaderConflictIsFatal(t *testing.T) {
	csvData := "Posting Date,Post Date,Description,Amount\n01/15/2024,01/15/2024,COFFEE,-4.50\n"

	_, err := NewImportPipeline().Run(strings.NewReader(csvData), 1)
	if err == nil {
		t.Fatal("Expected header conflict to abort the import")
	}
	if !errors.HasCode(err, errors.CodeHeaderConflict) {
		t.Errorf("Expected header_conflict code, got %v", err)
	}
}

func TestImportPipeline_EmptyFile(t *testing.T) {
	_, err := NewImportPipeline().Run(strings.NewReader(""), 1)
	if err == nil {
		t.Fatal("Expected an empty file to be rejected")
	}
	if !errors.HasCode(err, errors.CodeMissingHeader) {
		t.Errorf("Expected missing_header code, got %v", err)
	}
}

func TestImportPipeline_EmptyRowsSkipped(t *testing.T) {
	// Line 2 is fully blank (swallowed by the csv reader), line 3 holds
	// only empty cells. Both must surface as empty-row diagnostics at
	// their physical positions.
	csvData := strings.Join([]string{
		"Posting Date,Description,Amount",
		"01/15/2024,COFFEE,-4.50",
		"",
		",,",
		"01/16/2024,GROCERIES,-20.00",
	}, "\n")

	result, err := NewImportPipeline().Run(strings.NewReader(csvData), 1)
	if err != nil {
		t.Fatalf("Expected import to succeed, got error: %v", err)
	}
	if result.Stats.RowsSeen != 4 {
		t.Errorf("Expected 4 rows seen, got %d", result.Stats.RowsSeen)
	}
	if result.Stats.RowsParsed != 2 {
		t.Errorf("Expected 2 rows parsed, got %d", result.Stats.RowsParsed)
	}
	if result.Stats.SkippedCount() != 2 {
		t.Fatalf("Expected 2 skipped rows, got %d", result.Stats.SkippedCount())
	}
	for i, wantLine := range []int{2, 3} {
		if result.Stats.Skipped[i].Line != wantLine {
			t.Errorf("Expected empty row skipped at line %d, got line %d", wantLine, result.Stats.Skipped[i].Line)
		}
		if !errors.HasCode(result.Stats.Skipped[i].Err, errors.CodeEmptyRow) {
			t.Errorf("Expected empty_row code at line %d, got %v", wantLine, result.Stats.Skipped[i].Err)
		}
	}
}

func TestImportPipeline_BlankLineKeepsLineNumbers(t *testing.T) {
	// A blank line must not shift the reported position of later
	// diagnostics: the bad date sits on physical data row 3 and must be
	// reported there.
	csvData := strings.Join([]string{
		"Posting Date,Description,Amount",
		"01/15/2024,COFFEE,-4.50",
		"",
		"bad-date,BROKEN,-1.00",
	}, "\n")

	result, err := NewImportPipeline().Run(strings.NewReader(csvData), 1)
	if err != nil {
		t.Fatalf("Expected import to succeed, got error: %v", err)
	}
	if result.Stats.RowsSeen != 3 {
		t.Errorf("Expected 3 rows seen, got %d", result.Stats.RowsSeen)
	}
	if result.Stats.RowsParsed != 1 {
		t.Errorf("Expected 1 row parsed, got %d", result.Stats.RowsParsed)
	}
	if result.Stats.SkippedCount() != 2 {
		t.Fatalf("Expected 2 skipped rows, got %d", result.Stats.SkippedCount())
	}
	if result.Stats.Skipped[0].Line != 2 || !errors.HasCode(result.Stats.Skipped[0].Err, errors.CodeEmptyRow) {
		t.Errorf("Expected empty row at line 2, got line %d (%v)",
			result.Stats.Skipped[0].Line, result.Stats.Skipped[0].Err)
	}
	if result.Stats.Skipped[1].Line != 3 || !errors.HasCode(result.Stats.Skipped[1].Err, errors.CodeBadDate) {
		t.Errorf("Expected bad date at line 3, got line %d (%v)",
			result.Stats.Skipped[1].Line, result.Stats.Skipped[1].Err)
	}
	if !strings.Contains(result.Stats.Skipped[1].Reason, "line 3") {
		t.Errorf("Expected diagnostic text to reference line 3, got %q", result.Stats.Skipped[1].Reason)
	}
}

func TestImportPipeline_UnrecognizedHeadersReported(t *testing.T) {
	csvData := "Posting Date,Description,Amount,Check Number\n01/15/2024,COFFEE,-4.50,1001\n"

	result, err := NewImportPipeline().Run(strings.NewReader(csvData), 1)
	if err != nil {
		t.Fatalf("Expected import to succeed, got error: %v", err)
	}
	if len(result.Stats.UnrecognizedHeaders) != 1 || result.Stats.UnrecognizedHeaders[0] != "Check Number" {
		t.Errorf("Expected [Check Number] reported, got %v", result.Stats.UnrecognizedHeaders)
	}
}
