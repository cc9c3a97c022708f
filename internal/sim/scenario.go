package sim

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes a simulated application: reactive cells, renderers with
// scripted roots, and the steps applied to them.
type Scenario struct {
	Name      string         `yaml:"name"`
	Cells     map[string]any `yaml:"cells"`
	Renderers []RendererSpec `yaml:"renderers"`
	Steps     []Step         `yaml:"steps"`
}

// RendererSpec describes one renderer and the roots appended to it.
type RendererSpec struct {
	ID          string     `yaml:"id"`
	Interactive bool       `yaml:"interactive"`
	Roots       []RootSpec `yaml:"roots"`
}

// RootSpec describes one view mounted as a render root. A root with an
// Outlet is appended as an outlet view rendering its own script; otherwise
// it goes through the renderer's root template.
type RootSpec struct {
	View    string `yaml:"view"`
	Outlet  string `yaml:"outlet,omitempty"`
	Render  string `yaml:"render"`
	Destroy string `yaml:"destroy,omitempty"`
}

// Step is one batch of changes applied inside a single cycle.
type Step struct {
	Set    map[string]any `yaml:"set,omitempty"`
	Bump   bool           `yaml:"bump,omitempty"`
	Remove string         `yaml:"remove,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks ids and cell values.
func (s *Scenario) Validate() error {
	var errs []error
	for name, v := range s.Cells {
		if _, err := normalize(v); err != nil {
			errs = append(errs, fmt.Errorf("cell %q: %w", name, err))
		}
	}

	if len(s.Renderers) == 0 {
		errs = append(errs, errors.New("at least one renderer is required"))
	}
	rendererIDs := make(map[string]bool)
	views := make(map[string]bool)
	for i, r := range s.Renderers {
		if r.ID == "" {
			errs = append(errs, fmt.Errorf("renderers[%d]: id is required", i))
		} else if rendererIDs[r.ID] {
			errs = append(errs, fmt.Errorf("renderers[%d]: duplicate id %q", i, r.ID))
		}
		rendererIDs[r.ID] = true

		for j, root := range r.Roots {
			switch {
			case root.View == "":
				errs = append(errs, fmt.Errorf("renderers[%d].roots[%d]: view is required", i, j))
			case views[root.View]:
				errs = append(errs, fmt.Errorf("renderers[%d].roots[%d]: duplicate view %q", i, j, root.View))
			}
			views[root.View] = true
		}
	}

	for i, step := range s.Steps {
		for name, v := range step.Set {
			if _, ok := s.Cells[name]; !ok {
				errs = append(errs, fmt.Errorf("steps[%d]: unknown cell %q", i, name))
			} else if _, err := normalize(v); err != nil {
				errs = append(errs, fmt.Errorf("steps[%d]: cell %q: %w", i, name, err))
			}
		}
		if step.Remove != "" && !views[step.Remove] {
			errs = append(errs, fmt.Errorf("steps[%d]: unknown view %q", i, step.Remove))
		}
	}
	return errors.Join(errs...)
}
