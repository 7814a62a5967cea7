package resources

import "strings"

// Key identifies a resource for accounting. Two definitions that normalize to
// the same key are the same resource.
type Key string

func Normalize(s string) Key {
	return Key(strings.ToLower(strings.TrimSpace(s)))
}

type Def struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Key prefers the definition id and falls back to the display name.
func (d Def) Key() Key {
	if k := Normalize(d.ID); k != "" {
		return k
	}
	return Normalize(d.Name)
}
