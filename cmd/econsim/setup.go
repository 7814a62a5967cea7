package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"

	"stockyard.ai/internal/scenario"
	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/tuning"
	"stockyard.ai/internal/sim/world"
)

type configPaths struct {
	dir       string
	tuning    string
	resources string
	scenario  string
}

func (p configPaths) resolve(name, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(p.dir, name)
}

type loaded struct {
	tune     tuning.Tuning
	catalog  *resources.Catalog
	scenario *scenario.Scenario
}

// loadConfigs reads tuning, catalog and scenario. A missing tuning file falls
// back to defaults; the other two are required.
func loadConfigs(p configPaths, logger *log.Logger) (loaded, error) {
	var out loaded

	tp := p.resolve("tuning.yaml", p.tuning)
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return out, fmt.Errorf("load tuning: %w", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	out.tune = tune

	cat, err := resources.LoadCatalog(p.resolve("resources.yaml", p.resources))
	if err != nil {
		return out, fmt.Errorf("load resources: %w", err)
	}
	out.catalog = cat

	sc, err := scenario.Load(p.resolve("scenario.yaml", p.scenario))
	if err != nil {
		return out, fmt.Errorf("load scenario: %w", err)
	}
	if err := sc.CheckCatalog(cat); err != nil {
		return out, fmt.Errorf("scenario.yaml: %w", err)
	}
	out.scenario = sc
	return out, nil
}

// buildWorld creates the world and seeds it from the scenario.
func buildWorld(cfg loaded, logger *log.Logger, opts ...world.Option) (*world.World, scenario.Summary, error) {
	base := []world.Option{world.WithLogger(logger), world.WithCatalog(cfg.catalog)}
	if cfg.scenario.WorldID != "" {
		base = append(base, world.WithID(cfg.scenario.WorldID))
	}
	w, err := world.New(cfg.tune, append(base, opts...)...)
	if err != nil {
		return nil, scenario.Summary{}, err
	}
	sum, err := cfg.scenario.Apply(w, cfg.catalog)
	if err != nil {
		return nil, sum, fmt.Errorf("seed scenario: %w", err)
	}
	return w, sum, nil
}
