package brew

// Ledger is an in-memory MachineState. Levels are counted in servings.
type Ledger struct {
	WaterLevel int
	CupCount   int
	BeanLevel  int
	Types      map[Type]bool
	Power      bool
}

// NewLedger builds a ledger supporting the given types.
func NewLedger(water, cups, beans int, power bool, types ...Type) *Ledger {
	l := &Ledger{
		WaterLevel: water,
		CupCount:   cups,
		BeanLevel:  beans,
		Types:      make(map[Type]bool, len(types)),
		Power:      power,
	}
	for _, t := range types {
		l.Types[t] = true
	}
	return l
}

func (l *Ledger) Water() int { return l.WaterLevel }
func (l *Ledger) Cups() int { return l.CupCount }
func (l *Ledger) Beans() int { return l.BeanLevel }

func (l *Ledger) Supports(t Type) bool { return l.Types[t] }

func (l *Ledger) Powered() bool { return l.Power }

// Consume uses one serving of water, one cup and one serving of beans.
// Levels never drop below zero.
func (l *Ledger) Consume() {
	l.WaterLevel = max(l.WaterLevel-1, 0)
	l.CupCount = max(l.CupCount-1, 0)
	l.BeanLevel = max(l.BeanLevel-1, 0)
}

// Depleted reports whether any consumable resource is exhausted.
func (l *Ledger) Depleted() bool {
	return l.WaterLevel == 0 || l.CupCount == 0 || l.BeanLevel == 0
}

// SupportedTypes lists the supported types in lexical order.
func (l *Ledger) SupportedTypes() []Type {
	var types []Type
	for _, t := range AllTypes() {
		if l.Types[t] {
			types = append(types, t)
		}
	}
	return types
}
