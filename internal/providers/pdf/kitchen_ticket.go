package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type KitchenTicketData struct {
	TicketID   string
	OrderRef   string
	Status     string
	AssignedAt string
	Products   []KitchenTicketProduct
}

type KitchenTicketProduct struct {
	Name        string
	Qty         int64
	Ingredients []string
}

// GenerateKitchenTicket renders a narrow ticket for the kitchen printer.
func (p *PDFProvider) GenerateKitchenTicket(ctx context.Context, ticket KitchenTicketData) (io.Reader, error) {
	if ticket.OrderRef == "" {
		return nil, fmt.Errorf("kitchen ticket requires an order reference")
	}

	cfg := config.NewBuilder().
		WithDimensions(80, 200).
		WithLeftMargin(4).
		WithRightMargin(4).
		WithTopMargin(4).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10, text.NewCol(12, ticket.TicketID, props.Text{Size: 12, Style: fontstyle.Bold}))
	m.AddRow(6, text.NewCol(12, "Pedido "+ticket.OrderRef, props.Text{Size: 8}))
	m.AddRow(6, text.NewCol(12, ticket.AssignedAt+"  "+ticket.Status, props.Text{Size: 8}))

	for _, product := range ticket.Products {
		m.AddRow(7, text.NewCol(12, fmt.Sprintf("%dx %s", product.Qty, product.Name), props.Text{
			Size:  10,
			Style: fontstyle.Bold,
		}))
		if len(product.Ingredients) > 0 {
			m.AddRow(6, text.NewCol(12, strings.Join(product.Ingredients, ", "), props.Text{Size: 7}))
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
