package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AdminClienteID is the reserved identifier of the operator record.
const AdminClienteID = "ADMIN"

type Customer struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	ClienteID    string       `gorm:"column:cliente_id;size:32;not null;uniqueIndex" json:"clienteId"`
	Name         string       `gorm:"size:255;not null" json:"nombre"`
	Email        string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Document     *string      `gorm:"size:64;uniqueIndex" json:"documento,omitempty"`
	RegisteredAt time.Time    `gorm:"not null" json:"fechaRegistro"`
	Active       bool         `gorm:"not null;default:true" json:"activo"`
	UpdatedAt    time.Time    `gorm:"not null" json:"-"`
}

func (Customer) TableName() string { return "customers" }

// SequenceCounter is a named monotonic counter row. Seq holds the last
// issued value.
type SequenceCounter struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Seq       int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }
