package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/panucci/internal/clock"
	"github.com/smallbiznis/panucci/internal/config"
	"github.com/smallbiznis/panucci/internal/customer/domain"
	obsmetrics "github.com/smallbiznis/panucci/internal/observability/metrics"
	"github.com/smallbiznis/panucci/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Cfg     config.Config
	Metrics *obsmetrics.AllocatorMetrics `optional:"true"`
}

// Options tunes identifier issuance.
type Options struct {
	MaxAttempts int
	Prefix      string
	Width       int
	CounterName string
	EmailDomain string
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts: 10,
		Prefix:      "CL",
		Width:       4,
		CounterName: "clienteId",
		EmailDomain: "panucci.local",
	}
}

func optionsFrom(cfg config.AllocatorConfig) Options {
	opts := DefaultOptions()
	if cfg.MaxAttempts > 0 {
		opts.MaxAttempts = cfg.MaxAttempts
	}
	if p := strings.TrimSpace(cfg.Prefix); p != "" {
		opts.Prefix = p
	}
	if cfg.Width > 0 {
		opts.Width = cfg.Width
	}
	if n := strings.TrimSpace(cfg.CounterName); n != "" {
		opts.CounterName = n
	}
	if d := strings.TrimSpace(cfg.EmailDomain); d != "" {
		opts.EmailDomain = d
	}
	return opts
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *obsmetrics.AllocatorMetrics
	tracer  trace.Tracer

	opts    Options
	pattern *regexp.Regexp
}

func New(p Params) domain.Service {
	return NewWithOptions(p, optionsFrom(p.Cfg.Allocator))
}

func NewWithOptions(p Params, opts Options) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("customer.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   clk,
		metrics: p.Metrics,
		tracer:  otel.Tracer("panucci/customer"),
		opts:    opts,
		pattern: regexp.MustCompile("^" + regexp.QuoteMeta(opts.Prefix) + `(\d+)$`),
	}
}

func (s *Service) GetByClienteID(ctx context.Context, clienteID string) (domain.Customer, error) {
	clienteID = strings.TrimSpace(clienteID)
	if clienteID == "" {
		return domain.Customer{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByClienteID(ctx, s.db, clienteID)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	return s.repo.FindByEmail(ctx, s.db, email)
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	filter := domain.ListCustomerFilter{
		Name:   strings.TrimSpace(req.Name),
		Email:  normalizeEmail(req.Email),
		Active: req.Active,
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListCustomerResponse{}, domain.ErrInvalidID
		}
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil || id <= 0 {
			return domain.ListCustomerResponse{}, domain.ErrInvalidID
		}
		filter.BeforeID = id
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, int(pageSize)+1)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(customer *domain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID: customer.ID.String(),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && !pageInfo.HasMore {
		pageInfo.NextPageToken = ""
	}
	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	resp := domain.ListCustomerResponse{Customers: customers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

// FormatClienteID renders seq with the configured prefix and zero padding.
func (s *Service) FormatClienteID(seq int64) string {
	return fmt.Sprintf("%s%0*d", s.opts.Prefix, s.opts.Width, seq)
}

func (s *Service) placeholderEmail(seq int64) string {
	return fmt.Sprintf("cliente%03d@%s", seq, s.opts.EmailDomain)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
