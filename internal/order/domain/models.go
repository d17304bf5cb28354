package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusCreated    Status = "CREADO"
	StatusPreparing  Status = "EN_PREPARACION"
	StatusReady      Status = "LISTO"
	StatusDispatched Status = "EN_ENTREGA"
	StatusDelivered  Status = "ENTREGADO"
	StatusCanceled   Status = "CANCELADO"
)

var validStatuses = map[Status]struct{}{
	StatusCreated:    {},
	StatusPreparing:  {},
	StatusReady:      {},
	StatusDispatched: {},
	StatusDelivered:  {},
	StatusCanceled:   {},
}

func (s Status) Valid() bool {
	_, ok := validStatuses[s]
	return ok
}

// CustomerSnapshot is the customer as it was when the order was placed.
type CustomerSnapshot struct {
	ClienteID string `gorm:"-" json:"clienteId"`
	Name      string `gorm:"size:255" json:"nombre"`
	Email     string `gorm:"size:255" json:"email"`
}

type Order struct {
	ID        snowflake.ID     `gorm:"primaryKey" json:"-"`
	OrderID   string           `gorm:"column:order_id;size:64;not null;uniqueIndex" json:"orderId"`
	ClienteID string           `gorm:"column:cliente_id;size:32;not null;index" json:"clienteId"`
	Customer  CustomerSnapshot `gorm:"embedded;embeddedPrefix:customer_" json:"cliente"`
	Items     []OrderItem      `gorm:"foreignKey:OrderID;references:OrderID" json:"items"`
	Status    Status           `gorm:"size:32;not null;index" json:"estado"`
	Total     int64            `gorm:"not null" json:"total"`
	CreatedAt time.Time        `gorm:"not null;index" json:"fechaCreacion"`
	UpdatedAt time.Time        `gorm:"not null" json:"-"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) AfterFind(tx *gorm.DB) error {
	o.Customer.ClienteID = o.ClienteID
	return nil
}

type OrderItem struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"-"`
	OrderID    string       `gorm:"column:order_id;size:64;not null;index" json:"-"`
	ProductID  string       `gorm:"column:producto_id;size:64;not null" json:"productoId"`
	Name       string       `gorm:"size:255" json:"nombre"`
	Quantity   int64        `gorm:"not null" json:"cantidad"`
	UnitPrice  int64        `gorm:"not null" json:"precioUnit"`
	Subtotal   int64        `gorm:"not null" json:"subtotal"`
	LineNumber int          `gorm:"not null" json:"-"`
}

func (OrderItem) TableName() string { return "order_items" }
