package export

import (
	"bytes"
	"testing"
	"time"

	"contabils/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []core.Transaction {
	mk := func(id int64, typ core.TxType, cents int64, cat, desc, date string) core.Transaction {
		t := core.Transaction{ID: id, OwnerID: "u1", Type: typ, Amount: core.Money{Cents: cents}, Category: cat, Description: desc}
		t.SetDate(date)
		return t
	}
	return []core.Transaction{
		mk(1, core.TypeExpense, 4590, "Mercado", "feira", "2024-03-01"),
		mk(4, core.TypeIncome, 500000, "Salário", "", "2024-03-05"),
		mk(2, core.TypeExpense, 1999, "Lazer", "cinema", "2024-03-09"),
	}
}

func readRows(t *testing.T, body []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return rows
}

func cents(t *testing.T, raw string) int64 {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	require.NoError(t, err)
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func TestRender_Layout(t *testing.T) {
	fixed := time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)
	e := NewExporter("contabils", time.UTC, WithClock(func() time.Time { return fixed }))

	doc, err := e.Render("2024-03", "", sampleRows())
	require.NoError(t, err)
	assert.Equal(t, "contabils_extrato_2024-03.xlsx", doc.Filename)
	assert.Equal(t, ContentType, doc.ContentType)

	rows := readRows(t, doc.Body)
	require.Len(t, rows, 1+3+1+1+1+3)

	assert.Equal(t, []string{"Data", "Tipo", "Categoria", "Descrição", "Valor (R$)"}, rows[0])
	assert.Equal(t, []string{"2024-03-01", "Saída", "Mercado", "feira"}, rows[1][:4])
	assert.Equal(t, "Entrada", rows[2][1])
	assert.Equal(t, int64(4590), cents(t, rows[1][4]))

	assert.Empty(t, rows[4])
	assert.Equal(t, []string{"", "Exportado em", "10/03/2024, 15:04:05", "Filtro: Todas"}, rows[5])
	assert.Empty(t, rows[6])

	assert.Equal(t, "TOTAL ENTRADAS", rows[7][1])
	assert.Equal(t, "TOTAL SAÍDAS", rows[8][1])
	assert.Equal(t, "SALDO (ENTRADAS - SAÍDAS)", rows[9][1])
}

func TestRender_TotalsMatchRows(t *testing.T) {
	e := NewExporter("contabils", nil)
	rows := sampleRows()
	doc, err := e.Render("2024-03", "", rows)
	require.NoError(t, err)

	sheet := readRows(t, doc.Body)
	var income, expense int64
	for _, r := range sheet[1 : 1+len(rows)] {
		switch r[1] {
		case "Entrada":
			income += cents(t, r[4])
		case "Saída":
			expense += cents(t, r[4])
		}
	}

	n := len(sheet)
	assert.Equal(t, income, cents(t, sheet[n-3][4]))
	assert.Equal(t, expense, cents(t, sheet[n-2][4]))
	assert.Equal(t, income-expense, cents(t, sheet[n-1][4]))
	assert.Equal(t, core.NewSummary("2024-03", income, expense), doc.Totals)
}

func TestRender_EmptyMonthWithFilter(t *testing.T) {
	e := NewExporter("contabils", time.UTC)
	doc, err := e.Render("2024-02", "Saúde", nil)
	require.NoError(t, err)
	assert.Equal(t, "contabils_extrato_2024-02_Sade.xlsx", doc.Filename)

	rows := readRows(t, doc.Body)
	assert.Equal(t, "Filtro: Saúde", rows[2][3])
	n := len(rows)
	assert.Equal(t, int64(0), cents(t, rows[n-1][4]))
}

func TestRender_StyledCells(t *testing.T) {
	doc, err := NewExporter("contabils", nil).Render("2024-03", "", sampleRows())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(doc.Body))
	require.NoError(t, err)
	defer f.Close()

	styleID, err := f.GetCellStyle(SheetName, "E2")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.CustomNumFmt)
	assert.Equal(t, MoneyFormat, *style.CustomNumFmt)

	styleID, err = f.GetCellStyle(SheetName, "B10")
	require.NoError(t, err)
	style, err = f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestFilename(t *testing.T) {
	tests := []struct {
		category string
		want     string
	}{
		{"", "contabils_extrato_2024-03.xlsx"},
		{"Mercado", "contabils_extrato_2024-03_Mercado.xlsx"},
		{"Internet/Telefone", "contabils_extrato_2024-03_InternetTelefone.xlsx"},
		{"Pet_shop-2", "contabils_extrato_2024-03_Pet_shop-2.xlsx"},
		{"🎉", "contabils_extrato_2024-03.xlsx"},
		{"../../etc", "contabils_extrato_2024-03_etc.xlsx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Filename("contabils", "2024-03", tt.category), tt.category)
	}
}

func TestRender_CustomLabels(t *testing.T) {
	labels := DefaultLabels()
	labels.Headers[0] = "Date"
	labels.Balance = "BALANCE"

	doc, err := NewExporter("contabils", nil, WithLabels(labels)).Render("2024-03", "", sampleRows())
	require.NoError(t, err)

	rows := readRows(t, doc.Body)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "BALANCE", rows[len(rows)-1][1])
}
