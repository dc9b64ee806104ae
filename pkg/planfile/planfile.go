// Package planfile loads a packing plan from YAML, for the CLI's
// simulate subcommand. The real scheduler plugin constructs a
// types.PackingPlan directly from the cluster's packing algorithm;
// parsing it from a file is a development convenience and is explicitly
// out of scope for the TAM core itself.
package planfile

import (
	"fmt"
	"os"
	"sort"

	"github.com/heron-streaming/tam/pkg/types"
	"gopkg.in/yaml.v3"
)

type document struct {
	ComponentRAMMap string      `yaml:"componentRamMap"`
	Containers      []container `yaml:"containers"`
}

type container struct {
	ID   int     `yaml:"id"`
	RAM  int64   `yaml:"ram"`
	CPU  float64 `yaml:"cpu"`
}

// Load reads and parses a packing plan from path.
func Load(path string) (*types.PackingPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plan file: %w", err)
	}

	plan := &types.PackingPlan{ComponentRAMMap: types.ComponentRAMMap(doc.ComponentRAMMap)}
	for _, c := range doc.Containers {
		if c.ID < 1 {
			return nil, fmt.Errorf("container id %d must be >= 1", c.ID)
		}
		plan.Containers = append(plan.Containers, &types.ContainerPlan{
			ID:       c.ID,
			Resource: types.RequiredResource{RAM: c.RAM, CPU: c.CPU},
		})
	}

	sort.Slice(plan.Containers, func(i, j int) bool { return plan.Containers[i].ID < plan.Containers[j].ID })
	return plan, nil
}
