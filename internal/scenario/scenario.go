// Package scenario seeds a world from a YAML description: teams, their
// starting stock, civilians, resource nodes, construction sites and crafting
// buildings.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"stockyard.ai/internal/sim/civ"
	"stockyard.ai/internal/sim/crafting"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/site"
	"stockyard.ai/internal/sim/tasks"
	"stockyard.ai/internal/sim/world"
)

type Scenario struct {
	WorldID   string    `yaml:"world_id"`
	Civilians CivConfig `yaml:"civilians"`
	Teams     []Team    `yaml:"teams" validate:"required,min=1,dive"`
}

type CivConfig struct {
	TravelTicks int `yaml:"travel_ticks" validate:"gte=0"`
	Carry       int `yaml:"carry" validate:"gte=0"`
	WorkRate    int `yaml:"work_rate" validate:"gte=0"`
}

type Team struct {
	ID        model.Team      `yaml:"id" validate:"gte=1"`
	Stock     resources.Costs `yaml:"stock"`
	Civilians []CivGroup      `yaml:"civilians" validate:"dive"`
	Nodes     []Node          `yaml:"nodes" validate:"dive"`
	Sites     []Site          `yaml:"sites" validate:"dive"`
	Buildings []Building      `yaml:"buildings" validate:"dive"`
}

type CivGroup struct {
	Name         string      `yaml:"name"`
	Count        int         `yaml:"count" validate:"gte=1"`
	Pos          model.Vec3i `yaml:"pos"`
	Capabilities []string    `yaml:"capabilities" validate:"required,min=1,dive,required"`
}

type Node struct {
	ID           string        `yaml:"id" validate:"required"`
	Resource     resources.Key `yaml:"resource" validate:"required"`
	Pos          model.Vec3i   `yaml:"pos"`
	Remaining    int           `yaml:"remaining" validate:"gte=1"`
	MaxGatherers int           `yaml:"max_gatherers" validate:"gte=1"`
}

type Site struct {
	Key          string          `yaml:"key" validate:"required"`
	Pos          model.Vec3i     `yaml:"pos"`
	Costs        resources.Costs `yaml:"costs"`
	RequiredWork int             `yaml:"required_work" validate:"gte=0"`

	// Building is spawned in place when the site completes.
	Building *Building `yaml:"building,omitempty"`
}

type Building struct {
	ID             string      `yaml:"id" validate:"required"`
	Recipe         string      `yaml:"recipe" validate:"required"`
	Pos            model.Vec3i `yaml:"pos"`
	MaxWorkers     int         `yaml:"max_workers" validate:"gte=1"`
	Priority       int         `yaml:"priority"`
	RequiresHauler bool        `yaml:"requires_hauler"`
	AutoAssign     *bool       `yaml:"auto_assign"`
}

func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("scenario.yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario.yaml: %w", err)
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("field '%s' failed validation: %s (value: '%v')", e.Namespace(), e.Tag(), e.Value())
		}
		return err
	}
	seen := map[string]bool{}
	for _, t := range s.Teams {
		if seen[fmt.Sprint("team:", t.ID)] {
			return fmt.Errorf("duplicate team %d", t.ID)
		}
		seen[fmt.Sprint("team:", t.ID)] = true
		for _, n := range t.Nodes {
			if seen["node:"+n.ID] {
				return fmt.Errorf("duplicate node %q", n.ID)
			}
			seen["node:"+n.ID] = true
		}
		for _, st := range t.Sites {
			if seen["site:"+st.Key] {
				return fmt.Errorf("duplicate site %q", st.Key)
			}
			seen["site:"+st.Key] = true
		}
	}
	return nil
}

// CheckCatalog reports the first resource or recipe the catalog does not know.
func (s *Scenario) CheckCatalog(cat *resources.Catalog) error {
	known := func(k resources.Key) error {
		if _, ok := cat.Resource(k); !ok {
			return fmt.Errorf("unknown resource %q", k)
		}
		return nil
	}
	recipe := func(b Building) error {
		if _, ok := cat.Recipe(b.Recipe); !ok {
			return fmt.Errorf("building %q: unknown recipe %q", b.ID, b.Recipe)
		}
		return nil
	}
	for _, t := range s.Teams {
		for _, c := range t.Stock {
			if err := known(c.Resource); err != nil {
				return err
			}
		}
		for _, n := range t.Nodes {
			if err := known(n.Resource); err != nil {
				return fmt.Errorf("node %q: %w", n.ID, err)
			}
		}
		for _, st := range t.Sites {
			for _, c := range st.Costs {
				if err := known(c.Resource); err != nil {
					return fmt.Errorf("site %q: %w", st.Key, err)
				}
			}
			if st.Building != nil {
				if err := recipe(*st.Building); err != nil {
					return err
				}
			}
		}
		for _, b := range t.Buildings {
			if err := recipe(b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scenario) civConfig() civ.Config {
	cfg := civ.DefaultConfig()
	if s.Civilians.TravelTicks > 0 {
		cfg.TravelTicks = s.Civilians.TravelTicks
	}
	if s.Civilians.Carry > 0 {
		cfg.Carry = s.Civilians.Carry
	}
	if s.Civilians.WorkRate > 0 {
		cfg.WorkRate = s.Civilians.WorkRate
	}
	return cfg
}

// Summary counts what Apply placed.
type Summary struct {
	Civilians   int
	Nodes       int
	Sites       int
	DeniedSites []string
	Buildings   int
}

// Apply seeds w. It must run before the world loop starts or inside w.Do.
func (s *Scenario) Apply(w *world.World, cat *resources.Catalog) (Summary, error) {
	var sum Summary
	if err := s.CheckCatalog(cat); err != nil {
		return sum, err
	}
	cfg := s.civConfig()
	l := w.Ledger()

	for _, t := range s.Teams {
		for _, c := range resources.Merge(t.Stock) {
			if got := l.Deposit(t.ID, c.Resource, c.Amount); got < c.Amount {
				return sum, fmt.Errorf("team %d: stock %s %d exceeds capacity (stored %d)", t.ID, c.Resource, c.Amount, got)
			}
		}
		for _, g := range t.Civilians {
			caps := make([]tasks.Capability, 0, len(g.Capabilities))
			for _, c := range g.Capabilities {
				caps = append(caps, tasks.Capability(c))
			}
			for i := 0; i < g.Count; i++ {
				id := ""
				if g.Name != "" {
					id = fmt.Sprintf("%s-%d", g.Name, i+1)
				}
				w.AddWorker(civ.New(id, t.ID, g.Pos, cfg, caps...))
				sum.Civilians++
			}
		}
		for _, n := range t.Nodes {
			w.AddNode(&model.Node{
				ID:           n.ID,
				Team:         t.ID,
				Resource:     resources.Normalize(string(n.Resource)),
				Pos:          n.Pos,
				Remaining:    n.Remaining,
				MaxGatherers: n.MaxGatherers,
			})
			sum.Nodes++
		}
		for _, b := range t.Buildings {
			w.AddBuilding(newBuilding(w, cat, t.ID, b))
			sum.Buildings++
		}
		for _, st := range t.Sites {
			p := site.Params{
				Key:          st.Key,
				Team:         t.ID,
				Kind:         site.KindConstruction,
				Pos:          st.Pos,
				Costs:        st.Costs,
				RequiredWork: st.RequiredWork,
			}
			if st.Building != nil {
				def, team := *st.Building, t.ID
				if def.Pos == (model.Vec3i{}) {
					def.Pos = st.Pos
				}
				p.OnComplete = func(*site.Site) {
					w.AddBuilding(newBuilding(w, cat, team, def))
				}
			}
			if _, ok := w.PlaceSite(p); !ok {
				sum.DeniedSites = append(sum.DeniedSites, st.Key)
			}
			sum.Sites++
		}
	}
	return sum, nil
}

func newBuilding(w *world.World, cat *resources.Catalog, team model.Team, b Building) *crafting.Building {
	r, _ := cat.Recipe(b.Recipe)
	auto := true
	if b.AutoAssign != nil {
		auto = *b.AutoAssign
	}
	return crafting.NewBuilding(w.Ledger(), crafting.Params{
		ID:             b.ID,
		Team:           team,
		Pos:            b.Pos,
		Recipe:         r,
		MaxWorkers:     b.MaxWorkers,
		Priority:       b.Priority,
		RequiresHauler: b.RequiresHauler,
		AutoAssign:     auto,
	})
}
