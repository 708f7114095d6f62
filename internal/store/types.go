package store

import (
	"errors"

	"coffee-machine-backend/internal/model"
)

var (
	ErrMachineNotFound = errors.New("machine not found")
	ErrInvalidMachine  = errors.New("invalid machine")
	ErrInvalidRefill   = errors.New("refill amounts must not be negative")
)

// Reading is a single machine record reported by the sensor gateway.
type Reading struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Location string   `json:"location"`
	Water    int      `json:"water"`
	Cups     int      `json:"cups"`
	Beans    int      `json:"beans"`
	Powered  bool     `json:"powered"`
	Types    []string `json:"types"`
}

// RefillRequest adds servings to a machine's levels.
type RefillRequest struct {
	Water int `json:"water"`
	Cups  int `json:"cups"`
	Beans int `json:"beans"`
}

// BrewResult describes what a brew call did to a machine.
type BrewResult struct {
	Machine   model.Machine
	Completed int
	Log       model.BrewLog
	// Depleted is set when this call used up the last serving of a resource.
	Depleted bool
}

// SyncResult reports what a telemetry sync did.
type SyncResult struct {
	// NeedAttention lists machines that went from brewable to depleted or
	// unpowered in this sync.
	NeedAttention []int64
	Skipped       []SkippedReading
	UnknownTypes  []UnknownTypes
}

// SkippedReading is a reading that could not be applied.
type SkippedReading struct {
	MachineID int64
	Err       error
}

// UnknownTypes lists type names a reading carried that are not coffee types.
type UnknownTypes struct {
	MachineID int64
	Names     []string
}
