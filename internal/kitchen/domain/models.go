package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "PENDIENTE"
	StatusPreparing Status = "EN_PREPARACION"
	StatusReady     Status = "LISTO"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady:
		return true
	default:
		return false
	}
}

type Product struct {
	ProductID   string   `json:"productoId"`
	Name        string   `json:"nombre"`
	Quantity    int64    `json:"cantidad"`
	Ingredients []string `json:"ingredientes"`
}

// Ticket is the kitchen copy of an order.
type Ticket struct {
	ID         snowflake.ID                 `gorm:"primaryKey" json:"-"`
	TicketID   string                       `gorm:"column:kitchen_order_id;size:80;not null;uniqueIndex" json:"kitchenOrderId"`
	OrderRef   string                       `gorm:"column:order_ref;size:64;not null;uniqueIndex" json:"orderRef"`
	Status     Status                       `gorm:"size:32;not null" json:"estado"`
	Products   datatypes.JSONSlice[Product] `gorm:"not null" json:"productos"`
	AssignedAt time.Time                    `gorm:"column:assigned_at;not null;index" json:"horaAsignacion"`
	UpdatedAt  time.Time                    `gorm:"not null" json:"-"`
}

func (Ticket) TableName() string { return "kitchen_orders" }

// TicketIDFor derives the kitchen identifier of an order.
func TicketIDFor(orderID string) string {
	return "KCH_" + orderID
}
