package reference

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTables []byte

// File is the on-disk YAML layout of the reference tables.
type File struct {
	Combos []ComboDefinition  `yaml:"combos"`
	Yields map[string]float64 `yaml:"yields"`
	Costs  map[string]float64 `yaml:"costs"`
}

// TargetSource supplies the per-store targets and proxy mapping, which live
// in the database rather than the YAML file.
type TargetSource interface {
	LoadTargets(ctx context.Context) (map[uint]map[string]Target, map[uint]uint, error)
}

// ParseFile decodes YAML reference tables. Nothing is validated until the
// result goes through NewSnapshot.
func ParseFile(data []byte) (Tables, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Tables{}, fmt.Errorf("failed to parse reference tables: %w", err)
	}
	costs := make(map[string]decimal.Decimal, len(f.Costs))
	for p, c := range f.Costs {
		costs[p] = decimal.NewFromFloat(c)
	}
	return Tables{
		Combos: f.Combos,
		Yields: f.Yields,
		Costs:  costs,
	}, nil
}

// Defaults returns the built-in tables.
func Defaults() Tables {
	t, err := ParseFile(defaultTables)
	if err != nil {
		panic(err)
	}
	return t
}

// Loader builds snapshots from the YAML file (or the built-in defaults when
// Path is empty) plus the database targets.
type Loader struct {
	Path    string
	Targets TargetSource
}

func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	tables := Defaults()
	if l.Path != "" {
		data, err := os.ReadFile(l.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read reference tables: %w", err)
		}
		if tables, err = ParseFile(data); err != nil {
			return nil, err
		}
	}

	if l.Targets != nil {
		targets, proxies, err := l.Targets.LoadTargets(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load meat targets: %w", err)
		}
		tables.Targets = targets
		tables.Proxies = proxies
	}

	return NewSnapshot(tables)
}
