package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aescanero/dagrun/pkg/domain"
	"gopkg.in/yaml.v3"
)

// graphFile accepts either a bare graph or a request-shaped document
// ({graph, concurrency}) as sent to POST /graph/execute
type graphFile struct {
	domain.GraphSpec `yaml:",inline"`
	Graph            *domain.GraphSpec `json:"graph" yaml:"graph"`
	Concurrency      *int              `json:"concurrency" yaml:"concurrency"`
}

// loadGraph reads a YAML or JSON graph file. The concurrency it returns is
// nil unless the file sets one.
func loadGraph(path string) (*domain.GraphSpec, *int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var file graphFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &file)
	default:
		// YAML is a superset of JSON
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse graph file %s: %w", path, err)
	}

	spec := &file.GraphSpec
	if file.Graph != nil {
		spec = file.Graph
	}

	return spec, file.Concurrency, nil
}
