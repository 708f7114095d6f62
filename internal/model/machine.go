package model

import (
	"time"

	"coffee-machine-backend/internal/brew"
)

// Machine represents a coffee machine and its current resource levels.
type Machine struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Location       string    `gorm:"size:256" json:"location"`
	Water          int       `gorm:"not null" json:"water"` // servings
	Cups           int       `gorm:"not null" json:"cups"`
	Beans          int       `gorm:"not null" json:"beans"` // servings
	Powered        bool      `gorm:"not null" json:"powered"`
	SupportedTypes []string  `gorm:"serializer:json" json:"supportedTypes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Ledger copies the machine's levels into a brew.Ledger.
func (m *Machine) Ledger() *brew.Ledger {
	types := make([]brew.Type, 0, len(m.SupportedTypes))
	for _, t := range m.SupportedTypes {
		types = append(types, brew.Type(t))
	}
	return brew.NewLedger(m.Water, m.Cups, m.Beans, m.Powered, types...)
}

// Apply writes the consumable levels of l back onto the machine.
func (m *Machine) Apply(l *brew.Ledger) {
	m.Water = l.Water()
	m.Cups = l.Cups()
	m.Beans = l.Beans()
}

// NeedsAttention reports whether the machine cannot brew until someone
// refills it or restores power.
func (m *Machine) NeedsAttention() bool {
	return m.Water == 0 || m.Cups == 0 || m.Beans == 0 || !m.Powered
}
