package model

import "time"

// BrewLog records the outcome of one brew request.
type BrewLog struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	MachineID  int64     `gorm:"not null;index" json:"machineId"`
	Type       string    `gorm:"size:32;not null" json:"type"`
	Requested  int       `gorm:"not null" json:"requested"`
	Completed  int       `gorm:"not null" json:"completed"`
	Outcome    string    `gorm:"size:32;not null" json:"outcome"`
	FailedUnit int       `json:"failedUnit,omitempty"` // 0 when the request succeeded
	CreatedAt  time.Time `gorm:"not null;index" json:"createdAt"`
}
