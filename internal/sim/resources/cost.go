package resources

import (
	"fmt"
	"sort"
	"strings"
)

type Cost struct {
	Resource Key `yaml:"resource" json:"resource"`
	Amount   int `yaml:"amount" json:"amount"`
}

type Costs []Cost

// Merge sums duplicate keys and drops empty or non-positive lines. Lines keep
// the order of their first occurrence.
func Merge(in Costs) Costs {
	idx := map[Key]int{}
	out := make(Costs, 0, len(in))
	for _, c := range in {
		k := Normalize(string(c.Resource))
		if k == "" || c.Amount <= 0 {
			continue
		}
		if i, ok := idx[k]; ok {
			out[i].Amount += c.Amount
			continue
		}
		idx[k] = len(out)
		out = append(out, Cost{Resource: k, Amount: c.Amount})
	}
	return out
}

func (cs Costs) Amount(k Key) int {
	n := 0
	for _, c := range cs {
		if c.Resource == k {
			n += c.Amount
		}
	}
	return n
}

func (cs Costs) Keys() []Key {
	out := make([]Key, 0, len(cs))
	seen := map[Key]bool{}
	for _, c := range cs {
		if seen[c.Resource] {
			continue
		}
		seen[c.Resource] = true
		out = append(out, c.Resource)
	}
	return out
}

func (cs Costs) String() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, fmt.Sprintf("%s:%d", c.Resource, c.Amount))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
