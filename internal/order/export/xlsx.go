package export

import (
	"fmt"
	"time"

	"github.com/smallbiznis/panucci/internal/order/domain"
	"github.com/xuri/excelize/v2"
)

const (
	ordersSheet = "Pedidos"
	itemsSheet  = "Items"
)

var (
	orderHeader = []any{"orderId", "clienteId", "nombre", "email", "estado", "total", "items", "fechaCreacion"}
	itemHeader  = []any{"orderId", "productoId", "nombre", "cantidad", "precioUnit", "subtotal"}
)

// Workbook renders orders into an XLSX file with one sheet for orders and
// one for their line items.
func Workbook(orders []domain.Order) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), ordersSheet); err != nil {
		return nil, err
	}
	if _, err := xl.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	if err := xl.SetSheetRow(ordersSheet, "A1", &orderHeader); err != nil {
		return nil, err
	}
	if err := xl.SetSheetRow(itemsSheet, "A1", &itemHeader); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, order := range orders {
		record := []any{
			order.OrderID,
			order.ClienteID,
			order.Customer.Name,
			order.Customer.Email,
			string(order.Status),
			order.Total,
			len(order.Items),
			order.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(ordersSheet, cell, &record); err != nil {
			return nil, fmt.Errorf("write order %s: %w", order.OrderID, err)
		}

		for _, item := range order.Items {
			line := []any{order.OrderID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.Subtotal}
			cell, err := excelize.CoordinatesToCellName(1, itemRow)
			if err != nil {
				return nil, err
			}
			if err := xl.SetSheetRow(itemsSheet, cell, &line); err != nil {
				return nil, fmt.Errorf("write items of %s: %w", order.OrderID, err)
			}
			itemRow++
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
