// Package export renders monthly statements ("extratos") as xlsx workbooks.
//
// Rendering happens fully in memory. A Document is only returned once the
// workbook has been serialized, so HTTP handlers can write headers and body
// knowing nothing can fail halfway through the transfer.
package export

import (
	"fmt"
	"regexp"
	"time"

	"contabils/internal/core"

	"github.com/xuri/excelize/v2"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	SheetName   = "Extrato"

	// MoneyFormat shows negatives in red.
	MoneyFormat = `"R$" #,##0.00;[Red]-"R$" #,##0.00`

	timestampLayout = "02/01/2006, 15:04:05"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Labels are the fixed texts printed on the statement.
type Labels struct {
	Headers     [5]string
	ExportedAt  string
	FilterFmt   string
	FilterAll   string
	TotalIncome string
	TotalOut    string
	Balance     string
}

// DefaultLabels are the pt-BR statement texts.
func DefaultLabels() Labels {
	return Labels{
		Headers:     [5]string{"Data", "Tipo", "Categoria", "Descrição", "Valor (R$)"},
		ExportedAt:  "Exportado em",
		FilterFmt:   "Filtro: %s",
		FilterAll:   "Filtro: Todas",
		TotalIncome: "TOTAL ENTRADAS",
		TotalOut:    "TOTAL SAÍDAS",
		Balance:     "SALDO (ENTRADAS - SAÍDAS)",
	}
}

// Document is a fully rendered export.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
	Totals      core.Summary
}

type Exporter struct {
	appName  string
	location *time.Location
	labels   Labels
	now      func() time.Time
}

type Option func(*Exporter)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

func WithLabels(l Labels) Option {
	return func(e *Exporter) { e.labels = l }
}

// NewExporter returns an exporter stamping files with appName. A nil
// location means UTC.
func NewExporter(appName string, loc *time.Location, opts ...Option) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	e := &Exporter{
		appName:  appName,
		location: loc,
		labels:   DefaultLabels(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SanitizeCategory drops every character outside [A-Za-z0-9_-].
func SanitizeCategory(category string) string {
	return unsafeFilenameChars.ReplaceAllString(category, "")
}

// Filename builds <app>_extrato_<month>[_<category>].xlsx. The suffix is
// left out when there is no filter or nothing survives sanitizing.
func Filename(app, month, category string) string {
	name := fmt.Sprintf("%s_extrato_%s", app, month)
	if safe := SanitizeCategory(category); safe != "" {
		name += "_" + safe
	}
	return name + ".xlsx"
}

// Render writes rows, in the order given, followed by the metadata row and
// the totals computed from those same rows.
func (e *Exporter) Render(month, category string, rows []core.Transaction) (*Document, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, exportErr("rename sheet", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Creator: "Contabils", Title: "Extrato " + month}); err != nil {
		return nil, exportErr("doc props", err)
	}

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	header := make([]any, 0, len(e.labels.Headers))
	for _, h := range e.labels.Headers {
		header = append(header, h)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, exportErr("header", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "E1", st.bold); err != nil {
		return nil, exportErr("header style", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, exportErr("freeze header", err)
	}

	for i, w := range []float64{14, 10, 18, 36, 14} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, w); err != nil {
			return nil, exportErr("column width", err)
		}
	}

	row := 2
	for _, t := range rows {
		values := []any{t.Date, t.Type.Label(), t.Category, t.Description, t.Amount.Float()}
		if err := e.writeRow(f, row, values, st.money); err != nil {
			return nil, err
		}
		row++
	}

	totals := core.Totals(month, rows)

	filter := e.labels.FilterAll
	if category != "" {
		filter = fmt.Sprintf(e.labels.FilterFmt, category)
	}
	row++ // blank separator
	meta := []any{"", e.labels.ExportedAt, e.now().In(e.location).Format(timestampLayout), filter}
	if err := f.SetSheetRow(SheetName, cell("A", row), &meta); err != nil {
		return nil, exportErr("metadata row", err)
	}
	row += 2 // metadata, blank

	for _, line := range []struct {
		label string
		cents int64
	}{
		{e.labels.TotalIncome, totals.Income},
		{e.labels.TotalOut, totals.Expense},
		{e.labels.Balance, totals.Balance},
	} {
		values := []any{"", line.label, "", "", core.Money{Cents: line.cents}.Float()}
		if err := e.writeRow(f, row, values, st.boldMoney); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(SheetName, cell("A", row), cell("D", row), st.bold); err != nil {
			return nil, exportErr("totals style", err)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, exportErr("serialize workbook", err)
	}

	return &Document{
		Filename:    Filename(e.appName, month, category),
		ContentType: ContentType,
		Body:        buf.Bytes(),
		Totals:      totals,
	}, nil
}

func (e *Exporter) writeRow(f *excelize.File, row int, values []any, valueStyle int) error {
	if err := f.SetSheetRow(SheetName, cell("A", row), &values); err != nil {
		return exportErr(fmt.Sprintf("row %d", row), err)
	}
	if err := f.SetCellStyle(SheetName, cell("E", row), cell("E", row), valueStyle); err != nil {
		return exportErr(fmt.Sprintf("row %d style", row), err)
	}
	return nil
}

type styles struct {
	bold, money, boldMoney int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	numFmt := MoneyFormat

	if st.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return st, exportErr("bold style", err)
	}
	if st.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt}); err != nil {
		return st, exportErr("money style", err)
	}
	if st.boldMoney, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &numFmt}); err != nil {
		return st, exportErr("bold money style", err)
	}
	return st, nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func exportErr(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrExportFailure, step, err)
}
