package assemble

import (
	"fmt"
	"sort"
)

// Side names one of the two input sequences.
type Side int

const (
	// SideA is the first sequence, the odd pages in a duplex scan.
	SideA Side = iota
	// SideB is the second sequence, the even pages in reverse order.
	SideB
)

// String returns "A" or "B".
func (s Side) String() string {
	if s == SideB {
		return "B"
	}
	return "A"
}

// Slot picks one page of one sequence.
type Slot struct {
	Side  Side
	Index int
}

// Policy decides the emission order for two sequences of n pages each.
type Policy interface {
	Name() string
	Order(n int) []Slot
}

type policy struct {
	name  string
	order func(n int) []Slot
}

func (p policy) Name() string { return p.name }
func (p policy) Order(n int) []Slot { return p.order(n) }

// ReverseInterleave emits a[i] followed by b[n-1-i]. It restores page order
// for a stack scanned front sides first and back sides after flipping.
var ReverseInterleave Policy = policy{
	name: "reverse-interleave",
	order: func(n int) []Slot {
		slots := make([]Slot, 0, 2*n)
		for i := 0; i < n; i++ {
			slots = append(slots, Slot{SideA, i}, Slot{SideB, n - 1 - i})
		}
		return slots
	},
}

// Interleave emits a[i] followed by b[i].
var Interleave Policy = policy{
	name: "interleave",
	order: func(n int) []Slot {
		slots := make([]Slot, 0, 2*n)
		for i := 0; i < n; i++ {
			slots = append(slots, Slot{SideA, i}, Slot{SideB, i})
		}
		return slots
	},
}

var policies = map[string]Policy{
	ReverseInterleave.Name(): ReverseInterleave,
	Interleave.Name():        Interleave,
}

// PolicyByName returns the named policy.
func PolicyByName(name string) (Policy, error) {
	if p, ok := policies[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// PolicyNames returns the names accepted by PolicyByName, sorted.
func PolicyNames() []string {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
