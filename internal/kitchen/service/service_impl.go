package service

import (
	"context"
	"io"
	"strings"

	"github.com/smallbiznis/panucci/internal/kitchen/domain"
	"github.com/smallbiznis/panucci/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
	PDF  pdf.Provider
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
	pdf  pdf.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("kitchen.service"),
		repo: p.Repo,
		pdf:  p.PDF,
	}
}

func (s *Service) Get(ctx context.Context, orderRef string) (domain.Ticket, error) {
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return domain.Ticket{}, domain.ErrInvalidOrderRef
	}

	ticket, err := s.repo.FindByOrderRef(ctx, s.db, orderRef)
	if err != nil {
		return domain.Ticket{}, err
	}
	if ticket == nil {
		return domain.Ticket{}, domain.ErrNotFound
	}
	return *ticket, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListTicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func (s *Service) PrintTicket(ctx context.Context, orderRef string) (io.Reader, error) {
	ticket, err := s.Get(ctx, orderRef)
	if err != nil {
		return nil, err
	}

	data := pdf.KitchenTicketData{
		TicketID:   ticket.TicketID,
		OrderRef:   ticket.OrderRef,
		Status:     string(ticket.Status),
		AssignedAt: ticket.AssignedAt.Format("15:04"),
		Products:   make([]pdf.KitchenTicketProduct, 0, len(ticket.Products)),
	}
	for _, product := range ticket.Products {
		data.Products = append(data.Products, pdf.KitchenTicketProduct{
			Name:        product.Name,
			Qty:         product.Quantity,
			Ingredients: product.Ingredients,
		})
	}

	out, err := s.pdf.GenerateKitchenTicket(ctx, data)
	if err != nil {
		s.log.Error("render kitchen ticket", zap.String("order_ref", ticket.OrderRef), zap.Error(err))
		return nil, err
	}
	return out, nil
}
