package universe

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gocarina/gocsv"
)

// Asset is one row of a candidate-universe CSV. Selection operators
// fall back to the loaded universe when a strategy names no explicit
// candidates.
type Asset struct {
	Symbol string `csv:"symbol"`
	Name   string `csv:"name"`
}

func Load(r io.Reader) ([]Asset, error) {
	assets := []Asset{}
	if err := gocsv.Unmarshal(r, &assets); err != nil {
		return nil, fmt.Errorf("failed to parse universe csv: %w", err)
	}

	seen := map[string]bool{}
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if a.Symbol == "" {
			return nil, fmt.Errorf("universe csv contains row with empty symbol")
		}
		if seen[a.Symbol] {
			continue
		}
		seen[a.Symbol] = true
		out = append(out, a)
	}

	return out, nil
}

func LoadFile(path string) ([]Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open universe csv: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Symbols returns the universe's symbols in ascending order.
func Symbols(assets []Asset) []string {
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		symbols = append(symbols, a.Symbol)
	}
	sort.Strings(symbols)
	return symbols
}
