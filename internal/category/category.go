// Package category buckets free-text product and department names from the
// FULTec backend into the fixed report categories of the dashboard.
package category

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fuel station categories.
const (
	GasolinaAditivada = "GASOLINA ADITIVADA"
	GasolinaComum     = "GASOLINA COMUM"
	Etanol            = "ETANOL"
	DieselS10         = "DIESEL S-10"
	DieselS500        = "DIESEL S-500"
	GNV               = "GNV"
	Arla32            = "ARLA 32"
	Lubrificantes     = "LUBRIFICANTES"
)

// Convenience store sections.
const (
	Bebidas   = "BEBIDAS"
	Tabacaria = "TABACARIA"
	Alimentos = "ALIMENTOS"
	Mercearia = "MERCEARIA"
	Higiene   = "HIGIENE"
)

const Outros = "OUTROS"

// FuelCategories lists the fuel buckets in report order.
var FuelCategories = []string{GasolinaComum, GasolinaAditivada, Etanol, DieselS10, DieselS500, GNV, Arla32, Lubrificantes, Outros}

// StoreSections lists the store buckets in report order.
var StoreSections = []string{Bebidas, Alimentos, Tabacaria, Mercearia, Higiene, Outros}

type rule struct {
	category string
	all      []string
	any      []string
}

func (r rule) match(s string) bool {
	for _, kw := range r.all {
		if !strings.Contains(s, kw) {
			return false
		}
	}
	if len(r.any) == 0 {
		return true
	}
	for _, kw := range r.any {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Rules are evaluated in order; the first match wins.
var fuelRules = []rule{
	{category: Arla32, any: []string{"ARLA"}},
	{category: DieselS500, all: []string{"DIESEL", "S500"}},
	{category: DieselS10, any: []string{"DIESEL"}},
	{category: GNV, any: []string{"GNV", "GAS NATURAL"}},
	{category: GasolinaComum, any: []string{"GASOLINA"}},
	{category: Etanol, any: []string{"ETANOL", "ALCOOL", "HIDRATADO"}},
	{category: Lubrificantes, any: []string{"LUBRIFICANTE", "OLEO", "ADITIVO", "FLUIDO"}},
}

var premiumMarkers = []string{"ADITIVADA", "PODIUM", "PREMIUM", "V POWER", "GRID", "SUPRA"}

var storeRules = []rule{
	{category: Tabacaria, any: []string{"TABAC", "CIGARR", "FUMO", "ISQUEIRO", "SEDA"}},
	{category: Bebidas, any: []string{"BEBIDA", "REFRIGERANTE", "REFRI", "CERVEJA", "AGUA", "SUCO", "ENERGETICO", "CHA ", "CAFE", "DESTILADO", "VINHO"}},
	{category: Alimentos, any: []string{"ALIMENT", "LANCHE", "SALGADO", "PADARIA", "PAO", "DOCE", "CHOCOLATE", "SORVETE", "BISCOITO", "SANDUICHE", "SNACK", "BALA"}},
	{category: Higiene, any: []string{"HIGIENE", "PERFUMARIA", "FARMACIA", "SABONETE", "PAPEL HIG", "PRESERVATIVO"}},
	{category: Mercearia, any: []string{"MERCEARIA", "UTILIDADE", "LIMPEZA", "CARVAO", "GELO", "PILHA", "DESCARTAVEL"}},
}

// Fuel classifies a fuel station product name. Every name containing
// DIESEL is DIESEL S-10 unless it names S500.
func Fuel(product string) string {
	s := Normalize(product)
	if s == "" {
		return Outros
	}
	for _, r := range fuelRules {
		if !r.match(s) {
			continue
		}
		if r.category == GasolinaComum {
			return gasoline(s)
		}
		return r.category
	}
	return Outros
}

func gasoline(s string) string {
	for _, marker := range premiumMarkers {
		if strings.Contains(s, marker) {
			return GasolinaAditivada
		}
	}
	return GasolinaComum
}

// Store classifies a convenience store item. The department decides when it
// is recognised, the product name otherwise.
func Store(product, department string) string {
	if c := matchStore(Normalize(department)); c != Outros {
		return c
	}
	return matchStore(Normalize(product))
}

func matchStore(s string) string {
	if s == "" {
		return Outros
	}
	// trailing space lets "CHA " match a whole word at the end of a name
	s += " "
	for _, r := range storeRules {
		if r.match(s) {
			return r.category
		}
	}
	return Outros
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds accents, upper-cases, turns '-', '_' and '/' into spaces
// and collapses whitespace, so "Diésel  s-10" becomes "DIESEL S10".
func Normalize(s string) string {
	folded, _, err := transform.String(foldAccents, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '/', '.':
			return ' '
		}
		return unicode.ToUpper(r)
	}, folded)
	folded = strings.Join(strings.Fields(folded), " ")
	// "S 10" and "S10" must compare equal
	return strings.NewReplacer("S 10", "S10", "S 500", "S500").Replace(folded)
}

// Canonical maps a user-typed label onto the known category it normalises
// to, so a goal for "Diesel S10" lines up with DIESEL S-10 sales. Unknown
// labels are upper-cased and kept.
func Canonical(label string, known []string) string {
	n := Normalize(label)
	for _, k := range known {
		if Normalize(k) == n {
			return k
		}
	}
	return strings.ToUpper(strings.Join(strings.Fields(label), " "))
}
