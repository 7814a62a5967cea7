// Package tuning holds the economy's runtime knobs: step cadences and the
// storage capacity teams start with.
package tuning

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz" validate:"gte=1,lte=1000"`

	DispatchIntervalTicks   int `yaml:"dispatch_interval_ticks" validate:"gte=1"`
	GenerationIntervalTicks int `yaml:"generation_interval_ticks" validate:"gte=1"`
	CraftingIntervalTicks   int `yaml:"crafting_interval_ticks" validate:"gte=1"`

	DefaultBaselineCapacity int            `yaml:"default_baseline_capacity" validate:"gte=0"`
	BaselineCapacity        map[string]int `yaml:"baseline_capacity" validate:"dive,keys,required,endkeys,gte=0"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:              5,
		DispatchIntervalTicks:   1,
		GenerationIntervalTicks: 10,
		CraftingIntervalTicks:   5,
		DefaultBaselineCapacity: 100,
	}
}

// Load reads path over Defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	err := validator.New().Struct(t)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("validation failed:\n  %s", strings.Join(msgs, "\n  "))
}
