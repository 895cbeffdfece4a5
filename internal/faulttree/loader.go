package faulttree

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	FaultTrees []Definition `yaml:"fault_trees"`
}

// Load reads a YAML catalog (one record per error code) and builds the
// frozen registry. Any structural problem is a load-time error; there are
// no runtime errors once the catalog is up.
func Load(r io.Reader) (*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.FaultTrees) == 0 {
		return nil, fmt.Errorf("catalog defines no fault trees")
	}

	cat, err := NewCatalog(file.FaultTrees)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return cat, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}
