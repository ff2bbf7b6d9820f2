package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"posto-dashboard/internal/category"
	"posto-dashboard/internal/models"
)

// FULTec replies are not consistent across revisions: lists come bare or
// wrapped, numbers come as JSON numbers or strings. The types below absorb
// both.

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = 0
			return nil
		}
		// "1.234,56" style values
		if strings.Contains(raw, ",") {
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.Replace(raw, ",", ".", 1)
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*f = flexFloat(v)
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// parseTime reads backend timestamps; zone-less values are taken in loc.
func parseTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

type wrappedList struct {
	dest any
	keys []string
}

func listOf(dest any, keys ...string) *wrappedList {
	return &wrappedList{dest: dest, keys: keys}
}

func (l *wrappedList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, l.dest)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for _, key := range l.keys {
		if raw, ok := obj[key]; ok {
			return json.Unmarshal(raw, l.dest)
		}
	}
	return fmt.Errorf("expected a list or an object with one of %v", l.keys)
}

type fuelSaleDTO struct {
	ID           flexString `json:"id"`
	Produto      string     `json:"produto"`
	Departamento string     `json:"departamento"`
	Valor        flexFloat  `json:"valor"`
	Litros       flexFloat  `json:"litros"`
	Funcionario  string     `json:"funcionario"`
	Data         string     `json:"data"`
}

func fuelTransactions(rows []fuelSaleDTO, loc *time.Location) []models.Transaction {
	out := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		ts, _ := parseTime(row.Data, loc)
		out = append(out, models.Transaction{
			ID:         string(row.ID),
			Product:    strings.TrimSpace(row.Produto),
			Department: strings.TrimSpace(row.Departamento),
			Value:      float64(row.Valor),
			Liters:     float64(row.Litros),
			Quantity:   float64(row.Litros),
			Employee:   strings.TrimSpace(row.Funcionario),
			Timestamp:  ts,
			Category:   category.Fuel(row.Produto),
		})
	}
	return out
}

type rankingDTO struct {
	Colaborador string    `json:"colaborador"`
	Nome        string    `json:"nome"`
	Faturamento flexFloat `json:"faturamento"`
	Litros      flexFloat `json:"litros"`
	Quantidade  flexFloat `json:"quantidade"`
}

func (r rankingDTO) name() string {
	if name := strings.TrimSpace(r.Colaborador); name != "" {
		return name
	}
	return strings.TrimSpace(r.Nome)
}

func rankingEntries(rows []rankingDTO) []models.RankingEntry {
	out := make([]models.RankingEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.RankingEntry{
			Name:    row.name(),
			Revenue: float64(row.Faturamento),
			Liters:  float64(row.Litros),
			Sales:   int(row.Quantidade),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

type storeSaleDTO struct {
	ID           flexString `json:"id"`
	Produto      string     `json:"produto"`
	Departamento string     `json:"departamento"`
	Valor        flexFloat  `json:"valor"`
	Quantidade   flexFloat  `json:"quantidade"`
	Vendedor     string     `json:"vendedor"`
	Funcionario  string     `json:"funcionario"`
	Data         string     `json:"data"`
}

type sectionDTO struct {
	Secao       string    `json:"secao"`
	Faturamento flexFloat `json:"faturamento"`
	Custo       flexFloat `json:"custo"`
}

type storeDashboardDTO struct {
	Vendas []storeSaleDTO `json:"vendas"`
	Secoes []sectionDTO   `json:"secoes"`
}

func (d storeDashboardDTO) toModel(loc *time.Location) models.StoreData {
	data := models.StoreData{
		Sales:    make([]models.Transaction, 0, len(d.Vendas)),
		Sections: make([]models.SectionFigure, 0, len(d.Secoes)),
	}
	for _, row := range d.Vendas {
		ts, _ := parseTime(row.Data, loc)
		employee := row.Vendedor
		if employee == "" {
			employee = row.Funcionario
		}
		qty := float64(row.Quantidade)
		if qty == 0 {
			qty = 1
		}
		data.Sales = append(data.Sales, models.Transaction{
			ID:         string(row.ID),
			Product:    strings.TrimSpace(row.Produto),
			Department: strings.TrimSpace(row.Departamento),
			Value:      float64(row.Valor),
			Quantity:   qty,
			Employee:   strings.TrimSpace(employee),
			Timestamp:  ts,
			Category:   category.Store(row.Produto, row.Departamento),
		})
	}
	for _, s := range d.Secoes {
		data.Sections = append(data.Sections, models.SectionFigure{
			Section: category.Store("", s.Secao),
			Revenue: float64(s.Faturamento),
			Cost:    float64(s.Custo),
		})
	}
	return data
}
