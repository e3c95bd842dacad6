// Package export writes test cases as a Teambition import workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/joelkehle/prd2tc/internal/testcase"
)

const (
	SheetName = "Test Cases"

	// Row numbers are 1-based.
	rulesRow   = 1
	headerRow  = 2
	exampleRow = 3
	firstRow   = 4
)

const rulesNote = "Import rules: only Title* is required. Separate group levels with \"|\". " +
	"Number steps and expected results 【1】, 【2】, ... one per line. " +
	"Case Level is High, Medium or Low. Case Type is Functional, Performance, Security or Compatibility. " +
	"Do not delete the example row; data starts on row 4."

var Headers = []string{
	"Title*",
	"Group",
	"Maintainer",
	"Precondition",
	"Step Description",
	"Expected Result",
	"Case Level",
	"Case Type",
}

var exampleCase = testcase.Record{
	Title:           "User logs in with a valid phone number (example, do not delete)",
	GroupName:       "Web|Account|Login",
	Maintainer:      testcase.DefaultMaintainer,
	Precondition:    "The user is registered",
	StepDescription: "【1】Open the login page\n【2】Enter a valid phone number and code\n【3】Submit",
	ExpectedResult:  "【1】The login page is shown\n【2】The inputs are accepted\n【3】The home page is shown",
	CaseLevel:       testcase.LevelHigh,
	CaseType:        testcase.TypeFunctional,
}

var colWidths = map[string]float64{
	"A": 40,
	"B": 24,
	"C": 12,
	"D": 30,
	"E": 50,
	"F": 50,
	"G": 12,
	"H": 14,
}

func row(r testcase.Record) []any {
	return []any{
		r.Title,
		r.GroupName,
		r.Maintainer,
		r.Precondition,
		r.StepDescription,
		r.ExpectedResult,
		string(r.CaseLevel),
		string(r.CaseType),
	}
}

// Workbook returns an XLSX file holding records in the given order.
func Workbook(records []testcase.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	index, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	if err := f.SetCellValue(SheetName, "A1", rulesNote); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), rulesRow)
	if err := f.MergeCell(SheetName, "A1", last); err != nil {
		return nil, fmt.Errorf("merge rules row: %w", err)
	}

	if err := writeRow(f, headerRow, toAny(Headers)); err != nil {
		return nil, err
	}
	if err := writeRow(f, exampleRow, row(exampleCase)); err != nil {
		return nil, err
	}
	for i, r := range records {
		if err := writeRow(f, firstRow+i, row(r)); err != nil {
			return nil, err
		}
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, headerRow, headerRow, style)
	}
	for col, w := range colWidths {
		_ = f.SetColWidth(SheetName, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, rowNum int, values []any) error {
	cell, _ := excelize.CoordinatesToCellName(1, rowNum)
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// FileName returns the download name for a session export.
func FileName(sessionTitle string) string {
	if sessionTitle == "" {
		sessionTitle = "test cases"
	}
	return sessionTitle + ".xlsx"
}
