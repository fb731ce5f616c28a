package hive

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// WorkloadDef is the declarative, YAML-loadable description of a workload:
// an ordered list of system labels, each resolved against a registry of
// compiled Go systems (SPEC_FULL.md "Workload definitions as data"). The
// actual partitioning into Parallel/Sequential/Barrier stages still comes
// from WorkloadBuilder.Build — this type only decides which systems, in
// which order, feed the builder.
type WorkloadDef struct {
	Name    string   `yaml:"name"`
	Systems []string `yaml:"systems"`
}

// LoadWorkloadDefFile reads a YAML document describing one workload.
func LoadWorkloadDefFile(path string) (WorkloadDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return WorkloadDef{}, fmt.Errorf("hive: reading workload def %s: %w", path, err)
	}
	var def WorkloadDef
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return WorkloadDef{}, fmt.Errorf("hive: parsing workload def %s: %w", path, err)
	}
	if def.Name == "" {
		return WorkloadDef{}, fmt.Errorf("hive: workload def %s is missing a name", path)
	}
	return def, nil
}

// SystemRegistry maps a label used in a WorkloadDef to the compiled System
// it names.
type SystemRegistry map[string]*System

// Build resolves def's system labels against reg, in order, and hands them
// to a fresh WorkloadBuilder.
func (def WorkloadDef) Build(reg SystemRegistry) (*Workload, error) {
	b := NewWorkloadBuilder(def.Name)
	for _, label := range def.Systems {
		s, ok := reg[label]
		if !ok {
			return nil, fmt.Errorf("hive: workload %q references unknown system %q", def.Name, label)
		}
		b.With(s)
	}
	return b.Build()
}

// AddWorkloadFromYAML loads path, resolves it against reg, builds it, and
// registers it on w under its own name — sugar over
// LoadWorkloadDefFile + WorkloadDef.Build + World.AddWorkload.
func AddWorkloadFromYAML(w *World, path string, reg SystemRegistry) error {
	def, err := LoadWorkloadDefFile(path)
	if err != nil {
		return err
	}
	wl, err := def.Build(reg)
	if err != nil {
		return err
	}
	return w.AddWorkload(wl)
}
