// Package export writes the goal tracking table of a view as CSV or as an
// XLSX workbook with ranking and transaction sheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"posto-dashboard/internal/format"
	"posto-dashboard/internal/models"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Report is the exportable part of a fuel or store view.
type Report struct {
	View         models.View
	Range        models.DateRange
	Performance  []models.PerformanceRow
	Total        models.PerformanceRow
	Ranking      []models.RankingEntry
	Transactions []models.Transaction
	GeneratedAt  time.Time
}

func FromFuel(v *models.FuelView) Report {
	return Report{
		View:         models.ViewFuel,
		Range:        v.Range,
		Performance:  v.Performance,
		Total:        v.Total,
		Ranking:      v.Ranking,
		Transactions: v.Transactions,
		GeneratedAt:  v.FetchedAt,
	}
}

func FromStore(v *models.StoreView) Report {
	return Report{
		View:         models.ViewStore,
		Range:        v.Range,
		Performance:  v.Performance,
		Total:        v.Total,
		Ranking:      v.Ranking,
		Transactions: v.Transactions,
		GeneratedAt:  v.FetchedAt,
	}
}

// Filename is e.g. posto_2025-03-01_2025-03-17.csv.
func Filename(r Report, f Format) string {
	return fmt.Sprintf("%s_%s_%s.%s", r.View, r.Range.StartParam(), r.Range.EndParam(), f)
}

func Write(w io.Writer, r Report, f Format) error {
	if f == XLSX {
		return WriteXLSX(w, r)
	}
	return WriteCSV(w, r)
}

var performanceHeader = []string{"Categoria", "Meta Mensal", "Litragem", "Realizado", "Tendência", "Desempenho (%)", "Faltante"}

// WriteCSV writes the performance rows and the TOTAL row with dot
// decimals.
func WriteCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(performanceHeader); err != nil {
		return err
	}
	for _, row := range append(append([]models.PerformanceRow{}, r.Performance...), r.Total) {
		record := []string{
			row.Category,
			format.Plain(row.Goal),
			format.Plain(row.Liters),
			format.Plain(row.Actual),
			format.Plain(row.Trend),
			format.Plain(row.Variance),
			format.Plain(row.Shortfall),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const (
	sheetPerformance  = "Desempenho"
	sheetRanking      = "Ranking"
	sheetTransactions = "Transacoes"
)

// WriteXLSX writes sheets Desempenho, Ranking and Transacoes.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetPerformance); err != nil {
		return err
	}
	for _, name := range []string{sheetRanking, sheetTransactions} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#0E7490"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	if err != nil {
		return err
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]any
		widths []float64
	}{
		{sheetPerformance, performanceHeader, performanceRows(r), []float64{24, 16, 14, 16, 16, 16, 16}},
		{sheetRanking, []string{"Posição", "Colaborador", "Faturamento", "Litragem", "Vendas", "Crescimento (%)"}, rankingRows(r), []float64{10, 28, 16, 14, 10, 16}},
		{sheetTransactions, []string{"ID", "Data", "Produto", "Departamento", "Categoria", "Colaborador", "Quantidade", "Litros", "Valor"}, transactionRows(r), []float64{12, 20, 32, 20, 22, 24, 12, 12, 14}},
	}

	for _, s := range sheets {
		if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
			return err
		}
		last, _ := excelize.CoordinatesToCellName(len(s.header), 1)
		if err := f.SetCellStyle(s.name, "A1", last, header); err != nil {
			return err
		}
		for i, row := range s.rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return err
			}
		}
		for i, width := range s.widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColWidth(s.name, col, col, width); err != nil {
				return err
			}
		}
	}

	// the TOTAL row sits right after the category rows
	totalRow := len(r.Performance) + 2
	end, _ := excelize.CoordinatesToCellName(7, totalRow)
	if err := f.SetCellStyle(sheetPerformance, "B2", end, money); err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := f.SetCellStyle(sheetPerformance, start, end, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func performanceRows(r Report) [][]any {
	rows := make([][]any, 0, len(r.Performance)+1)
	for _, p := range append(append([]models.PerformanceRow{}, r.Performance...), r.Total) {
		rows = append(rows, []any{p.Category, p.Goal, p.Liters, p.Actual, p.Trend, p.Variance, p.Shortfall})
	}
	return rows
}

func rankingRows(r Report) [][]any {
	rows := make([][]any, 0, len(r.Ranking))
	for _, e := range r.Ranking {
		rows = append(rows, []any{e.Position, e.Name, e.Revenue, e.Liters, e.Sales, e.Growth})
	}
	return rows
}

func transactionRows(r Report) [][]any {
	rows := make([][]any, 0, len(r.Transactions))
	for _, tx := range r.Transactions {
		ts := ""
		if !tx.Timestamp.IsZero() {
			ts = tx.Timestamp.Format("02/01/2006 15:04")
		}
		rows = append(rows, []any{tx.ID, ts, tx.Product, tx.Department, tx.Category, tx.Employee, tx.Quantity, tx.Liters, tx.Value})
	}
	return rows
}
