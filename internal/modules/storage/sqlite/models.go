package sqlite

import (
	"time"
)

// Aggregates are stored as JSON state next to the columns they are
// looked up by.

type sessionRow struct {
	ID        string `gorm:"primaryKey"`
	Owner     string `gorm:"index"`
	State     []byte
	CreatedAt time.Time
}

func (sessionRow) TableName() string { return "game_session" }

type recipientRow struct {
	ID    string `gorm:"primaryKey"`
	Admin string `gorm:"index"`
	State []byte
}

func (recipientRow) TableName() string { return "recipient" }

type slotRow struct {
	ID          string `gorm:"primaryKey"`
	RecipientID string `gorm:"index"`
	State       []byte
}

func (slotRow) TableName() string { return "treasury_slot" }

type prizeRow struct {
	ID        string `gorm:"primaryKey"`
	SessionID string `gorm:"index"`
	State     []byte
}

func (prizeRow) TableName() string { return "prize" }

type membershipRow struct {
	Address   string `gorm:"primaryKey"`
	Kind      string `gorm:"primaryKey"`
	RecordID  string `gorm:"uniqueIndex"`
	Name      string
	Endpoint  string
	CreatedAt time.Time
}

func (membershipRow) TableName() string { return "membership" }

type discoveryRow struct {
	SessionID string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (discoveryRow) TableName() string { return "discovery_entry" }

type transferRow struct {
	ID        string `gorm:"primaryKey"`
	ToAddress string `gorm:"index"`
	State     []byte
	CreatedAt time.Time
}

func (transferRow) TableName() string { return "transfer" }

var models = []any{
	&sessionRow{},
	&recipientRow{},
	&slotRow{},
	&prizeRow{},
	&membershipRow{},
	&discoveryRow{},
	&transferRow{},
}
