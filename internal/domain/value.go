package domain

import (
	"fmt"
	"sort"
	"strings"

	"stratengine/internal/lang"

	"github.com/shopspring/decimal"
)

type ValueKind int

const (
	ValueNumber ValueKind = iota
	ValueBool
	ValueSymbol
	ValueFragment
	ValueList
)

func (k ValueKind) String() string {
	switch k {
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueSymbol:
		return "symbol"
	case ValueFragment:
		return "fragment"
	case ValueList:
		return "list"
	}
	return "unknown"
}

// Value is what every evaluation step produces. Exactly one payload is
// meaningful, per Kind. Consumers switch exhaustively on Kind so a new
// variant forces review of every handler.
type Value struct {
	Kind     ValueKind
	Num      decimal.Decimal
	Bool     bool
	Symbol   string
	Fragment *PortfolioFragment
	List     []Value
}

func NumberValue(d decimal.Decimal) Value {
	return Value{Kind: ValueNumber, Num: d}
}

func BoolValue(b bool) Value {
	return Value{Kind: ValueBool, Bool: b}
}

func SymbolValue(s string) Value {
	return Value{Kind: ValueSymbol, Symbol: s}
}

func FragmentValue(f *PortfolioFragment) Value {
	return Value{Kind: ValueFragment, Fragment: f}
}

func ListValue(vs []Value) Value {
	return Value{Kind: ValueList, List: vs}
}

// String renders the value for trace entries and error messages.
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return v.Num.String()
	case ValueBool:
		return fmt.Sprintf("%t", v.Bool)
	case ValueSymbol:
		return v.Symbol
	case ValueFragment:
		return v.Fragment.String()
	case ValueList:
		parts := make([]string, 0, len(v.List))
		for _, e := range v.List {
			parts = append(parts, e.String())
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	return "<unknown value>"
}

// PortfolioFragment is an unnormalized symbol -> weight mapping produced
// mid-evaluation. Weights are non-negative but need not sum to one; the
// allocation converter owns normalization. Origin points at the AST node
// that produced the fragment.
type PortfolioFragment struct {
	Weights map[string]decimal.Decimal
	Origin  lang.Pos
}

func NewPortfolioFragment(origin lang.Pos) *PortfolioFragment {
	return &PortfolioFragment{
		Weights: map[string]decimal.Decimal{},
		Origin:  origin,
	}
}

// AddWeight accumulates weight for a symbol. Duplicate symbols are
// summed, never overwritten.
func (f *PortfolioFragment) AddWeight(symbol string, w decimal.Decimal) {
	if existing, ok := f.Weights[symbol]; ok {
		f.Weights[symbol] = existing.Add(w)
		return
	}
	f.Weights[symbol] = w
}

// Merge folds other's weights into f, summing duplicates.
func (f *PortfolioFragment) Merge(other *PortfolioFragment) {
	for symbol, w := range other.Weights {
		f.AddWeight(symbol, w)
	}
}

// Total returns the sum of all weights.
func (f *PortfolioFragment) Total() decimal.Decimal {
	total := decimal.Zero
	for _, w := range f.Weights {
		total = total.Add(w)
	}
	return total
}

// Symbols returns the fragment's symbols in ascending order.
func (f *PortfolioFragment) Symbols() []string {
	symbols := make([]string, 0, len(f.Weights))
	for s := range f.Weights {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func (f *PortfolioFragment) String() string {
	if f == nil {
		return "{}"
	}
	parts := make([]string, 0, len(f.Weights))
	for _, s := range f.Symbols() {
		parts = append(parts, fmt.Sprintf("%s %s", s, f.Weights[s].String()))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
