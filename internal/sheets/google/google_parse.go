package google

import (
	"fmt"
	"strconv"
	"strings"

	"contabils/internal/core"
)

// Header is the first row of the mirror sheet.
var Header = []any{"ID", "Owner", "Data", "Tipo", "Categoria", "Descrição", "Valor", "Mês"}

const lastColumn = "H"

// rowFor lays out t in Header order. The amount is a plain decimal so the
// sheet can sum it.
func rowFor(t core.Transaction) []any {
	return []any{
		strconv.FormatInt(t.ID, 10),
		t.OwnerID,
		t.Date,
		t.Type.Label(),
		t.Category,
		t.Description,
		t.Amount.Decimal().StringFixed(2),
		t.MonthKey,
	}
}

// findRow returns the 1-based sheet row whose first two cells hold id and
// owner, or 0. An empty owner matches any owner.
func findRow(values [][]any, owner string, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) == 0 || cols[0] != want {
			continue
		}
		if owner != "" && (len(cols) < 2 || cols[1] != owner) {
			continue
		}
		return i + 1
	}
	return 0
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, lastColumn, row)
}

func columnsRange(sheet, cols string) string {
	return fmt.Sprintf("%s!%s", quoteSheet(sheet), cols)
}

// quoteSheet quotes names that A1 notation would otherwise misread.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!-") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
