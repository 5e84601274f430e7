/*
Package importer reads the FG and prepayment feeds.

PURPOSE:
  Both feeds are tabular with a header row, exported either as CSV (UTF-8,
  comma-delimited) or as an XLSX workbook. Rows become typed records; the
  columns the engine does not use are kept verbatim in Extra for display.

COLUMN ALIASES:
  Headers are matched case-insensitively after trimming. The first alias
  present in the header wins.

    FG feed:         number     Номер ФГ | id | fg_number | number   (required)
                     name       ФГ | name                            (required)
                     start date Начало работы | start_date
                     ref        Реф | ref
    Prepayment feed: fg number  Номер фин. группы | fg_number        (required)
                     period     Период | period                      (required)
                     amount     Пополнения $ | Пополнения | amount   (required)

  For the amount, every alias present is consulted per row and the first
  non-empty cell wins.

LENIENCY:
  Empty lines are skipped, a UTF-8 BOM is tolerated, short rows are padded.
  Cell values are never parsed here; amounts and dates stay raw text and are
  normalized by the engine.

SEE ALSO:
  - generic/types.go: ParseAmount
  - generic/time.go: ParseDate
*/
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// TABLE - Format-independent rows
// =============================================================================

// Table is a parsed feed: a header row and data rows padded to its width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Format is an import file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the format from a file name extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %s", generic.ErrUnsupportedFormat, filename)
}

// Read parses r in the format implied by filename.
func Read(filename string, r io.Reader) (Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return Table{}, err
	}
	if format == FormatXLSX {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

var bom = []byte("\xef\xbb\xbf")

// ReadCSV parses a comma-delimited feed with a header row.
func ReadCSV(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, bom)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("failed to parse csv: %w", err)
		}
		records = append(records, rec)
	}
	return newTable(records), nil
}

// ReadXLSX parses the first sheet of a workbook.
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, nil
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("failed to get rows: %w", err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			return Table{}, fmt.Errorf("failed to get row columns: %w", err)
		}
		records = append(records, row)
	}
	if err := rows.Error(); err != nil {
		return Table{}, fmt.Errorf("failed to read rows: %w", err)
	}
	return newTable(records), nil
}

// newTable drops empty lines and pads data rows to the header width.
func newTable(records [][]string) Table {
	var t Table
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		if t.Header == nil {
			t.Header = make([]string, len(rec))
			for i, h := range rec {
				t.Header[i] = strings.TrimSpace(h)
			}
			continue
		}
		row := make([]string, max(len(t.Header), len(rec)))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// COLUMN RESOLUTION
// =============================================================================

var (
	fgNumberColumns = []string{"Номер ФГ", "id", "fg_number", "number"}
	fgNameColumns   = []string{"ФГ", "name"}
	fgStartColumns  = []string{"Начало работы", "start_date"}
	fgRefColumns    = []string{"Реф", "ref"}
	ppFGColumns     = []string{"Номер фин. группы", "fg_number"}
	ppPeriodColumns = []string{"Период", "period"}
	ppAmountColumns = []string{"Пополнения $", "Пополнения", "amount"}
)

// column returns the index of the first alias present in header, or -1.
func (t Table) column(aliases []string) int {
	for _, a := range aliases {
		for i, h := range t.Header {
			if strings.EqualFold(h, a) {
				return i
			}
		}
	}
	return -1
}

// columns returns the indices of every alias present, in alias order.
func (t Table) columns(aliases []string) []int {
	var out []int
	for _, a := range aliases {
		for i, h := range t.Header {
			if strings.EqualFold(h, a) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func (t Table) require(feed string, aliases []string) (int, error) {
	i := t.column(aliases)
	if i < 0 {
		return -1, &generic.MissingColumnError{Feed: feed, Candidates: aliases}
	}
	return i, nil
}

// extra collects every cell not claimed by a typed column.
func (t Table) extra(row []string, claimed map[int]bool) map[string]string {
	var out map[string]string
	for i, h := range t.Header {
		if claimed[i] || h == "" || i >= len(row) {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[h] = row[i]
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// =============================================================================
// FEEDS
// =============================================================================

// ParseFGs maps a table to FG records. Source and manager stay unset.
func ParseFGs(t Table) ([]commission.FG, error) {
	numberCol, err := t.require("fg", fgNumberColumns)
	if err != nil {
		return nil, err
	}
	nameCol, err := t.require("fg", fgNameColumns)
	if err != nil {
		return nil, err
	}
	startCol := t.column(fgStartColumns)
	refCol := t.column(fgRefColumns)

	claimed := map[int]bool{numberCol: true, nameCol: true, startCol: true, refCol: true}

	fgs := make([]commission.FG, 0, len(t.Rows))
	for _, row := range t.Rows {
		fgs = append(fgs, commission.FG{
			Number:    cell(row, numberCol),
			Name:      cell(row, nameCol),
			StartDate: cell(row, startCol),
			Ref:       cell(row, refCol),
			Extra:     t.extra(row, claimed),
		})
	}
	return fgs, nil
}

// ParsePrepayments maps a table to prepayment records.
func ParsePrepayments(t Table) ([]commission.Prepayment, error) {
	fgCol, err := t.require("prepayments", ppFGColumns)
	if err != nil {
		return nil, err
	}
	periodCol, err := t.require("prepayments", ppPeriodColumns)
	if err != nil {
		return nil, err
	}
	amountCols := t.columns(ppAmountColumns)
	if len(amountCols) == 0 {
		return nil, &generic.MissingColumnError{Feed: "prepayments", Candidates: ppAmountColumns}
	}

	claimed := map[int]bool{fgCol: true, periodCol: true}
	for _, c := range amountCols {
		claimed[c] = true
	}

	pps := make([]commission.Prepayment, 0, len(t.Rows))
	for _, row := range t.Rows {
		var amount string
		for _, c := range amountCols {
			if v := cell(row, c); v != "" {
				amount = v
				break
			}
		}
		pps = append(pps, commission.Prepayment{
			FGNumber: cell(row, fgCol),
			Amount:   amount,
			Period:   cell(row, periodCol),
			Extra:    t.extra(row, claimed),
		})
	}
	return pps, nil
}

// ReadFGs is Read followed by ParseFGs.
func ReadFGs(filename string, r io.Reader) ([]commission.FG, error) {
	t, err := Read(filename, r)
	if err != nil {
		return nil, err
	}
	return ParseFGs(t)
}

// ReadPrepayments is Read followed by ParsePrepayments.
func ReadPrepayments(filename string, r io.Reader) ([]commission.Prepayment, error) {
	t, err := Read(filename, r)
	if err != nil {
		return nil, err
	}
	return ParsePrepayments(t)
}
