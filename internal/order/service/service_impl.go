package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/panucci/internal/catalog"
	"github.com/smallbiznis/panucci/internal/clock"
	"github.com/smallbiznis/panucci/internal/config"
	customerdomain "github.com/smallbiznis/panucci/internal/customer/domain"
	"github.com/smallbiznis/panucci/internal/idempotency"
	kitchendomain "github.com/smallbiznis/panucci/internal/kitchen/domain"
	obsmetrics "github.com/smallbiznis/panucci/internal/observability/metrics"
	"github.com/smallbiznis/panucci/internal/order/domain"
	"github.com/smallbiznis/panucci/internal/order/export"
	"github.com/smallbiznis/panucci/internal/providers/pdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultCustomerName = "Cliente"
	idempotencyScope    = "orders"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	KitchenRepo kitchendomain.Repository
	Customers   customerdomain.Service
	Catalog     *catalog.Service
	PDF         pdf.Provider
	Idempotency idempotency.Store
	Clock       clock.Clock
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	kitchenRepo kitchendomain.Repository
	customers   customerdomain.Service
	catalog     *catalog.Service
	pdf         pdf.Provider
	idem        idempotency.Store
	clock       clock.Clock
	metrics     *obsmetrics.Metrics
	tracer      trace.Tracer
}

func New(p Params) domain.Service {
	idem := p.Idempotency
	if idem == nil {
		idem = idempotency.NoopStore{}
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		kitchenRepo: p.KitchenRepo,
		customers:   p.Customers,
		catalog:     p.Catalog,
		pdf:         p.PDF,
		idem:        idem,
		clock:       clk,
		metrics:     p.Metrics,
		tracer:      otel.Tracer("panucci/order"),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResult, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		order, err := s.create(ctx, req)
		if err != nil {
			return domain.CreateOrderResult{}, err
		}
		return domain.CreateOrderResult{Order: order}, nil
	}

	lease, err := s.idem.Begin(ctx, idempotencyScope, req.IdempotencyKey)
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		return domain.CreateOrderResult{}, domain.ErrRequestInFlight
	case errors.Is(err, idempotency.ErrKeyTooLong), errors.Is(err, idempotency.ErrEmptyKey):
		return domain.CreateOrderResult{}, domain.ErrInvalidIdempotencyKey
	case err != nil:
		return domain.CreateOrderResult{}, err
	}

	if lease.Replayed() {
		order, err := s.Get(ctx, lease.Result)
		if err != nil {
			return domain.CreateOrderResult{}, err
		}
		s.metrics.RecordIdempotentReplay(ctx, "orders.create")
		s.log.Info("order replayed",
			zap.String("order_id", order.OrderID),
			zap.String("idempotency_key", req.IdempotencyKey),
		)
		return domain.CreateOrderResult{Order: order, Replayed: true}, nil
	}

	order, err := s.create(ctx, req)
	if err != nil {
		if rerr := s.idem.Release(ctx, lease); rerr != nil {
			s.log.Warn("release idempotency key", zap.Error(rerr))
		}
		return domain.CreateOrderResult{}, err
	}
	if err := s.idem.Complete(ctx, lease, order.OrderID); err != nil {
		s.log.Warn("complete idempotency key",
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
	}
	return domain.CreateOrderResult{Order: order}, nil
}

func (s *Service) create(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()

	lines, err := s.normalizeItems(ctx, req.Items)
	if err != nil {
		return domain.Order{}, err
	}

	customer, err := s.resolveCustomer(ctx, req.CustomerName, req.CustomerEmail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve customer")
		return domain.Order{}, err
	}

	now := s.clock.Now().UTC()
	orderID := "ORD_" + s.genID.Generate().String()
	order := domain.Order{
		ID:        s.genID.Generate(),
		OrderID:   orderID,
		ClienteID: customer.ClienteID,
		Customer: domain.CustomerSnapshot{
			ClienteID: customer.ClienteID,
			Name:      customer.Name,
			Email:     customer.Email,
		},
		Status:    domain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	products := make([]kitchendomain.Product, 0, len(lines))
	for i, line := range lines {
		line.item.ID = s.genID.Generate()
		line.item.OrderID = orderID
		line.item.LineNumber = i + 1
		order.Items = append(order.Items, line.item)
		order.Total += line.item.Subtotal

		products = append(products, kitchendomain.Product{
			ProductID:   line.item.ProductID,
			Name:        line.item.Name,
			Quantity:    line.item.Quantity,
			Ingredients: line.ingredients,
		})
	}

	ticket := kitchendomain.Ticket{
		ID:         s.genID.Generate(),
		TicketID:   kitchendomain.TicketIDFor(orderID),
		OrderRef:   orderID,
		Status:     kitchendomain.StatusPending,
		Products:   datatypes.NewJSONSlice(products),
		AssignedAt: now,
		UpdatedAt:  now,
	}

	persist := func(db *gorm.DB) error {
		if err := s.repo.Insert(ctx, db, &order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := s.kitchenRepo.Upsert(ctx, db, &ticket); err != nil {
			return fmt.Errorf("upsert kitchen ticket: %w", err)
		}
		return nil
	}

	err = s.repo.Transaction(ctx, s.db, persist)
	if errors.Is(err, domain.ErrTransactionsUnsupported) {
		err = persist(s.db)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order")
		s.log.Error("create order", zap.String("order_id", orderID), zap.Error(err))
		return domain.Order{}, err
	}

	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("customer.cliente_id", customer.ClienteID),
	)
	s.metrics.RecordOrderCreated(ctx)
	s.log.Info("order created",
		zap.String("order_id", orderID),
		zap.String("cliente_id", customer.ClienteID),
		zap.Int64("total", order.Total),
		zap.Int("items", len(order.Items)),
	)
	return order, nil
}

// resolveCustomer reuses the customer registered under email and allocates
// a new one otherwise.
func (s *Service) resolveCustomer(ctx context.Context, name, email string) (customerdomain.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultCustomerName
	}
	email = strings.ToLower(strings.TrimSpace(email))

	if email != "" {
		existing, err := s.customers.FindByEmail(ctx, email)
		if err != nil {
			return customerdomain.Customer{}, err
		}
		if existing != nil {
			s.metrics.RecordCustomerAllocated(ctx, "existing")
			return *existing, nil
		}
	}

	customer, err := s.customers.Allocate(ctx, customerdomain.AllocateRequest{Name: name, Email: email})
	if err == nil {
		s.metrics.RecordCustomerAllocated(ctx, "allocated")
		return customer, nil
	}

	// A concurrent order may have registered the same email.
	if email != "" && errors.Is(err, customerdomain.ErrAllocationExhausted) {
		existing, lerr := s.customers.FindByEmail(ctx, email)
		if lerr == nil && existing != nil {
			s.metrics.RecordCustomerAllocated(ctx, "existing")
			return *existing, nil
		}
	}
	return customerdomain.Customer{}, err
}

type normalizedLine struct {
	item        domain.OrderItem
	ingredients []string
}

func (s *Service) normalizeItems(ctx context.Context, items []domain.ItemInput) ([]normalizedLine, error) {
	if len(items) == 0 {
		return nil, domain.ErrInvalidItems
	}

	var total int64
	lines := make([]normalizedLine, 0, len(items))
	for _, in := range items {
		productID := strings.TrimSpace(in.ProductID)
		if productID == "" || in.Quantity < 1 {
			return nil, domain.ErrInvalidItems
		}
		if in.UnitPrice != nil && *in.UnitPrice < 0 {
			return nil, domain.ErrInvalidItems
		}

		line := normalizedLine{
			item: domain.OrderItem{
				ProductID: productID,
				Name:      strings.TrimSpace(in.Name),
				Quantity:  in.Quantity,
			},
			ingredients: []string{},
		}
		if in.UnitPrice != nil {
			line.item.UnitPrice = *in.UnitPrice
		}

		if product, ok := s.lookupProduct(ctx, productID); ok {
			if line.item.Name == "" {
				line.item.Name = product.Name
			}
			if in.UnitPrice == nil {
				line.item.UnitPrice = product.Price
			}
			if len(product.Ingredients) > 0 {
				line.ingredients = append(line.ingredients, product.Ingredients...)
			}
		}

		if line.item.UnitPrice != 0 && line.item.Quantity > math.MaxInt64/line.item.UnitPrice {
			return nil, domain.ErrInvalidItems
		}
		line.item.Subtotal = line.item.Quantity * line.item.UnitPrice
		if total > math.MaxInt64-line.item.Subtotal {
			return nil, domain.ErrInvalidItems
		}
		total += line.item.Subtotal
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Service) lookupProduct(ctx context.Context, productID string) (config.Product, bool) {
	if s.catalog == nil {
		return config.Product{}, false
	}
	return s.catalog.Lookup(ctx, productID)
}

func (s *Service) Get(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, domain.ErrInvalidOrderID
	}

	order, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return *order, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListOrderFilter) ([]domain.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	orders, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (s *Service) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.StatusCreated {
		return domain.Order{}, domain.ErrNotCancelable
	}

	changed, err := s.repo.UpdateStatus(ctx, s.db, order.OrderID, domain.StatusCanceled, domain.StatusCreated)
	if err != nil {
		return domain.Order{}, err
	}
	if !changed {
		return domain.Order{}, domain.ErrNotCancelable
	}

	s.metrics.RecordOrderTransition(ctx, string(order.Status), string(domain.StatusCanceled))
	s.log.Info("order canceled", zap.String("order_id", order.OrderID))
	return s.Get(ctx, order.OrderID)
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Order, error) {
	if !req.Status.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}

	order, err := s.Get(ctx, req.OrderID)
	if err != nil {
		return domain.Order{}, err
	}

	changed, err := s.repo.UpdateStatus(ctx, s.db, order.OrderID, req.Status)
	if err != nil {
		return domain.Order{}, err
	}
	if !changed {
		return domain.Order{}, domain.ErrNotFound
	}

	s.metrics.RecordOrderTransition(ctx, string(order.Status), string(req.Status))
	s.log.Info("order status updated",
		zap.String("order_id", order.OrderID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(req.Status)),
	)
	return s.Get(ctx, order.OrderID)
}

func (s *Service) Receipt(ctx context.Context, orderID string) (io.Reader, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	data := pdf.ReceiptData{
		OrderID:       order.OrderID,
		CreatedAt:     order.CreatedAt.Format("2006-01-02 15:04"),
		Status:        string(order.Status),
		CustomerID:    order.ClienteID,
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		Total:         formatAmount(order.Total),
		Items:         make([]pdf.LineItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, pdf.LineItem{
			Description: item.Name,
			Qty:         item.Quantity,
			UnitPrice:   formatAmount(item.UnitPrice),
			Amount:      formatAmount(item.Subtotal),
		})
	}

	return s.pdf.GenerateReceipt(ctx, data)
}

func (s *Service) Export(ctx context.Context, filter domain.ListOrderFilter) ([]byte, error) {
	orders, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return export.Workbook(orders)
}

// formatAmount renders whole pesos with dot thousands separators.
func formatAmount(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := fmt.Sprintf("%d", v)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}
