package catalog

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kjbranchesi/alfcoach/internal/models"
	"gopkg.in/yaml.v3"
)

// fileOverride is the YAML shape deployments use to replace guidance text and
// example banks without a rebuild. Stage order, steps, and completion
// predicates are code, not config, and cannot be overridden.
type fileOverride struct {
	Stages []struct {
		ID    string `yaml:"id"`
		Steps []struct {
			ID       string   `yaml:"id"`
			Guidance string   `yaml:"guidance"`
			Examples []string `yaml:"examples"`
		} `yaml:"steps"`
	} `yaml:"stages"`
}

// ApplyOverridesFromFile replaces guidance templates and example banks from a
// YAML file. Unknown stages or steps in the file are an error so a typo does
// not silently leave stale text in place.
func (c *Catalog) ApplyOverridesFromFile(path string) error {
	slog.Debug("catalog.ApplyOverridesFromFile: loading overrides", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog overrides: %w", err)
	}

	var ov fileOverride
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("failed to parse catalog overrides: %w", err)
	}

	for _, stage := range ov.Stages {
		idx, ok := c.index[models.StageID(stage.ID)]
		if !ok {
			return fmt.Errorf("catalog overrides reference unknown stage %q", stage.ID)
		}
		for _, step := range stage.Steps {
			applied := false
			for i := range c.stages[idx].Steps {
				if c.stages[idx].Steps[i].ID != models.StepID(step.ID) {
					continue
				}
				if step.Guidance != "" {
					c.stages[idx].Steps[i].Guidance = step.Guidance
				}
				if len(step.Examples) > 0 {
					c.stages[idx].Steps[i].Examples = step.Examples
				}
				applied = true
				break
			}
			if !applied {
				return fmt.Errorf("catalog overrides reference unknown step %q in stage %q", step.ID, stage.ID)
			}
		}
	}

	slog.Info("catalog.ApplyOverridesFromFile: overrides applied", "path", path, "stages", len(ov.Stages))
	return nil
}
