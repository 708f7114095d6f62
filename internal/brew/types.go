package brew

import "sort"

// Type is a coffee style a machine can be asked to brew.
type Type string

const (
	Espresso   Type = "espresso"
	Americano  Type = "americano"
	Cappuccino Type = "cappuccino"
	Latte      Type = "latte"
	FlatWhite  Type = "flat_white"
	Mocha      Type = "mocha"
)

var knownTypes = map[Type]struct{}{
	Espresso:   {},
	Americano:  {},
	Cappuccino: {},
	Latte:      {},
	FlatWhite:  {},
	Mocha:      {},
}

// Valid reports whether t is one of the known coffee styles.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// AllTypes returns every known coffee style in lexical order.
func AllTypes() []Type {
	types := make([]Type, 0, len(knownTypes))
	for t := range knownTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Request asks for Count cups of Type in a single call.
type Request struct {
	Type  Type `json:"type"`
	Count int  `json:"count"`
}

// MachineState is the resource ledger read before every unit.
type MachineState interface {
	Water() int
	Cups() int
	Beans() int
	Supports(t Type) bool
	Powered() bool
}
