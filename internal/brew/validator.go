// Package brew validates and executes coffee brewing requests against a
// machine's resource ledger.
package brew

type precondition struct {
	holds func(s MachineState, t Type) bool
	err   error
}

// preconditions are evaluated in order; the first one that does not hold
// is the failure reported for the unit.
var preconditions = []precondition{
	{func(s MachineState, _ Type) bool { return s.Water() > 0 }, ErrOutOfWater},
	{func(s MachineState, _ Type) bool { return s.Cups() > 0 }, ErrOutOfCups},
	{func(s MachineState, _ Type) bool { return s.Beans() > 0 }, ErrOutOfBeans},
	{func(s MachineState, t Type) bool { return s.Supports(t) }, ErrUnsupportedType},
	{func(s MachineState, _ Type) bool { return s.Powered() }, ErrNoPower},
}

// Check returns the first unmet precondition for brewing one cup of t,
// or nil when the unit may proceed.
func Check(s MachineState, t Type) error {
	for _, p := range preconditions {
		if !p.holds(s, t) {
			return p.err
		}
	}
	return nil
}

// UnitFunc performs the brewing side effect for one unit.
type UnitFunc func(unit int) error

// Run brews req.Count units one after another. Before each unit the
// preconditions are checked against s; the first failure stops the run and
// is returned wrapped in a *UnitError. Run returns the number of units
// that completed.
func Run(req Request, s MachineState, brewUnit UnitFunc) (int, error) {
	if req.Count < 0 {
		return 0, ErrInvalidCount
	}

	for unit := 1; unit <= req.Count; unit++ {
		if err := Check(s, req.Type); err != nil {
			return unit - 1, &UnitError{Unit: unit, Completed: unit - 1, Err: err}
		}
		if err := brewUnit(unit); err != nil {
			return unit - 1, &UnitError{Unit: unit, Completed: unit - 1, Err: err}
		}
	}
	return req.Count, nil
}

// Brew runs req against l, consuming one serving of each resource per
// completed unit.
func Brew(req Request, l *Ledger) (int, error) {
	return Run(req, l, func(int) error {
		l.Consume()
		return nil
	})
}
