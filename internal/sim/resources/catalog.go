package resources

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Recipe describes one production cycle of a crafting building.
type Recipe struct {
	ID        string `yaml:"id"`
	JobType   string `yaml:"job_type"`
	Inputs    Costs  `yaml:"inputs"`
	Outputs   Costs  `yaml:"outputs"`
	WorkTicks int    `yaml:"work_ticks"`
}

type Catalog struct {
	Resources []Def    `yaml:"resources"`
	Recipes   []Recipe `yaml:"recipes"`

	byKey    map[Key]Def
	byRecipe map[string]Recipe
}

func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("resources.yaml: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, fmt.Errorf("resources.yaml: %w", err)
	}
	return &c, nil
}

func (c *Catalog) index() error {
	c.byKey = map[Key]Def{}
	for _, d := range c.Resources {
		k := d.Key()
		if k == "" {
			return fmt.Errorf("resource with empty id and name")
		}
		if _, ok := c.byKey[k]; ok {
			// Same normalized key: same resource.
			continue
		}
		c.byKey[k] = d
	}
	c.byRecipe = map[string]Recipe{}
	for _, r := range c.Recipes {
		if r.ID == "" {
			return fmt.Errorf("recipe with empty id")
		}
		if _, ok := c.byRecipe[r.ID]; ok {
			return fmt.Errorf("duplicate recipe %q", r.ID)
		}
		r.Inputs = Merge(r.Inputs)
		r.Outputs = Merge(r.Outputs)
		for _, line := range append(append(Costs{}, r.Inputs...), r.Outputs...) {
			if _, ok := c.byKey[line.Resource]; !ok {
				return fmt.Errorf("recipe %q: unknown resource %q", r.ID, line.Resource)
			}
		}
		if r.WorkTicks <= 0 {
			r.WorkTicks = 1
		}
		c.byRecipe[r.ID] = r
	}
	return nil
}

func (c *Catalog) Resource(k Key) (Def, bool) {
	d, ok := c.byKey[Normalize(string(k))]
	return d, ok
}

func (c *Catalog) Recipe(id string) (Recipe, bool) {
	r, ok := c.byRecipe[id]
	return r, ok
}

// Keys returns every distinct resource key, sorted.
func (c *Catalog) Keys() []Key {
	out := make([]Key, 0, len(c.byKey))
	for k := range c.byKey {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
