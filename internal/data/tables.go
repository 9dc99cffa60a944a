// Package data loads the static game tables. Tables ship as an embedded YAML
// document and can be overridden by a file on disk.
package data

import (
	_ "embed"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// ResourceInfo holds the template for one resource kind.
type ResourceInfo struct {
	Kind      string `yaml:"kind"`
	Symbol    string `yaml:"symbol"` // single map glyph
	Weight    int    `yaml:"weight"` // spawn weight, relative to the other kinds
	MinAmount int    `yaml:"min_amount"`
	MaxAmount int    `yaml:"max_amount"`
	GatherXP  int    `yaml:"gather_xp"` // base XP per gather, before harvesting bonus
}

// ResourceTable holds all resource kinds in declaration order.
type ResourceTable struct {
	kinds       []*ResourceInfo
	byKind      map[string]*ResourceInfo
	totalWeight int
}

// Get returns a resource kind by name, or nil if not found.
func (t *ResourceTable) Get(kind string) *ResourceInfo {
	return t.byKind[kind]
}

// All returns the kinds in declaration order.
func (t *ResourceTable) All() []*ResourceInfo {
	return t.kinds
}

// Count returns the number of loaded kinds.
func (t *ResourceTable) Count() int {
	return len(t.kinds)
}

// PickKind selects a kind by weighted draw: a uniform roll over the total
// weight, subtracting each kind's weight in turn until the remainder goes
// negative.
func (t *ResourceTable) PickKind(rng *rand.Rand) *ResourceInfo {
	roll := rng.Intn(t.totalWeight)
	for _, info := range t.kinds {
		roll -= info.Weight
		if roll < 0 {
			return info
		}
	}
	return t.kinds[len(t.kinds)-1]
}

// RollAmount rolls a stack size within the kind's range.
func (t *ResourceTable) RollAmount(rng *rand.Rand, info *ResourceInfo) int {
	if info.MaxAmount <= info.MinAmount {
		return info.MinAmount
	}
	return info.MinAmount + rng.Intn(info.MaxAmount-info.MinAmount+1)
}

type tablesFile struct {
	Resources []*ResourceInfo `yaml:"resources"`
}

// LoadResources loads the resource table. An empty path loads the embedded
// default.
func LoadResources(path string) (*ResourceTable, error) {
	raw := defaultTables
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tables %s: %w", path, err)
		}
		raw = b
	}

	var f tablesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tables: %w", err)
	}
	if len(f.Resources) == 0 {
		return nil, fmt.Errorf("tables: no resource kinds defined")
	}

	t := &ResourceTable{byKind: make(map[string]*ResourceInfo, len(f.Resources))}
	for _, info := range f.Resources {
		if info.Kind == "" {
			return nil, fmt.Errorf("tables: resource kind with empty name")
		}
		if _, dup := t.byKind[info.Kind]; dup {
			return nil, fmt.Errorf("tables: duplicate resource kind %q", info.Kind)
		}
		if info.Weight <= 0 {
			return nil, fmt.Errorf("tables: resource %q has non-positive weight", info.Kind)
		}
		if info.MinAmount < 1 || info.MaxAmount < info.MinAmount {
			return nil, fmt.Errorf("tables: resource %q has bad amount range [%d,%d]",
				info.Kind, info.MinAmount, info.MaxAmount)
		}
		t.kinds = append(t.kinds, info)
		t.byKind[info.Kind] = info
		t.totalWeight += info.Weight
	}
	return t, nil
}
