package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

var Module = fx.Module("pdf.provider",
	fx.Provide(New),
)

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
	GenerateKitchenTicket(ctx context.Context, data KitchenTicketData) (io.Reader, error)
}

type LineItem struct {
	Description string
	Qty         int64
	UnitPrice   string
	Amount      string
}

type PDFProvider struct {
	businessName string
}

func New() Provider {
	return &PDFProvider{businessName: "Panucci Pizza"}
}
