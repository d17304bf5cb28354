package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/panucci/internal/customer/domain"
	obsmetrics "github.com/smallbiznis/panucci/internal/observability/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeCollision
	outcomeFatal
)

func classifyAttempt(err error) attemptOutcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, domain.ErrDuplicateKey):
		return outcomeCollision
	default:
		return outcomeFatal
	}
}

// Allocate issues the next customer identifier and stores the record.
//
// Each attempt reconciles the counter with the stored identifiers, reserves
// the next value and inserts the customer, inside one transaction when the
// store supports it. A uniqueness violation triggers a reconciliation outside
// any transaction and a new attempt. Other store errors are returned as is.
func (s *Service) Allocate(ctx context.Context, req domain.AllocateRequest) (domain.Customer, error) {
	base, err := s.normalizeRequest(req)
	if err != nil {
		return domain.Customer{}, err
	}

	ctx, span := s.tracer.Start(ctx, "customer.Allocate")
	defer span.End()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			s.metrics.ObserveAllocation(obsmetrics.AllocationResultCanceled, attempt-1, time.Since(start))
			return domain.Customer{}, err
		}

		customer, err := s.attempt(ctx, base)
		switch classifyAttempt(err) {
		case outcomeSuccess:
			span.SetAttributes(
				attribute.Int("customer.attempts", attempt),
				attribute.String("customer.cliente_id", customer.ClienteID),
			)
			s.metrics.ObserveAllocation(obsmetrics.AllocationResultSuccess, attempt, time.Since(start))
			s.log.Debug("customer allocated",
				zap.String("cliente_id", customer.ClienteID),
				zap.Int("attempt", attempt),
			)
			return customer, nil

		case outcomeCollision:
			lastErr = err
			s.metrics.IncCollision()
			s.log.Info("customer id collision, reconciling",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", s.opts.MaxAttempts),
				zap.Error(err),
			)
			if _, rerr := s.reconcile(ctx, s.db, obsmetrics.ReconcileTriggerCollision); rerr != nil {
				s.finishWithError(span, start, attempt, rerr)
				return domain.Customer{}, fmt.Errorf("reconcile after collision: %w", rerr)
			}

		default:
			s.metrics.IncError(err)
			s.finishWithError(span, start, attempt, err)
			return domain.Customer{}, fmt.Errorf("allocate customer id: %w", err)
		}
	}

	exhausted := &domain.AllocationExhaustedError{Attempts: s.opts.MaxAttempts, Err: lastErr}
	s.log.Warn("customer id allocation exhausted",
		zap.Int("attempts", s.opts.MaxAttempts),
		zap.Error(lastErr),
	)
	s.finishWithError(span, start, s.opts.MaxAttempts, exhausted)
	return domain.Customer{}, exhausted
}

func (s *Service) finishWithError(span trace.Span, start time.Time, attempts int, err error) {
	span.SetAttributes(attribute.Int("customer.attempts", attempts))
	span.RecordError(err)
	span.SetStatus(codes.Error, obsmetrics.ClassifyAllocationResult(err))
	s.metrics.ObserveAllocation(obsmetrics.ClassifyAllocationResult(err), attempts, time.Since(start))
}

// attempt runs one reservation, falling back to plain statements when the
// store reports transactions as unsupported.
func (s *Service) attempt(ctx context.Context, base domain.Customer) (domain.Customer, error) {
	var customer domain.Customer
	err := s.repo.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		created, err := s.reserveAndInsert(ctx, tx, base)
		if err != nil {
			return err
		}
		customer = created
		return nil
	})
	if errors.Is(err, domain.ErrTransactionsUnsupported) {
		s.metrics.IncFallback()
		s.log.Debug("transactions unsupported, allocating without transaction", zap.Error(err))
		return s.reserveAndInsert(ctx, s.db, base)
	}
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) reserveAndInsert(ctx context.Context, db *gorm.DB, base domain.Customer) (domain.Customer, error) {
	max, err := s.reconcile(ctx, db, obsmetrics.ReconcileTriggerReserve)
	if err != nil {
		return domain.Customer{}, err
	}

	seq, ok, err := s.repo.IncrementCounter(ctx, db, s.opts.CounterName)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("increment counter: %w", err)
	}
	if !ok {
		seq = max + 1
	}

	now := s.clock.Now().UTC()
	customer := base
	customer.ID = s.genID.Generate()
	customer.ClienteID = s.FormatClienteID(seq)
	if customer.Email == "" {
		customer.Email = s.placeholderEmail(seq)
	}
	customer.RegisteredAt = now
	customer.UpdatedAt = now
	customer.Active = true

	if err := s.repo.InsertCustomer(ctx, db, &customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

// Reconcile sets the counter to the largest sequential identifier in use.
func (s *Service) Reconcile(ctx context.Context) (int64, error) {
	max, err := s.reconcile(ctx, s.db, obsmetrics.ReconcileTriggerManual)
	if err != nil {
		return 0, err
	}
	s.log.Info("customer counter reconciled",
		zap.String("counter", s.opts.CounterName),
		zap.Int64("seq", max),
	)
	return max, nil
}

// ReconcileOnBoot is Reconcile labelled for startup metrics.
func (s *Service) ReconcileOnBoot(ctx context.Context) (int64, error) {
	return s.reconcile(ctx, s.db, obsmetrics.ReconcileTriggerBoot)
}

func (s *Service) reconcile(ctx context.Context, db *gorm.DB, trigger string) (int64, error) {
	previous, err := s.repo.ReadCounter(ctx, db, s.opts.CounterName)
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	max, err := s.repo.ReadMaxSequentialID(ctx, db, s.opts.Prefix, s.pattern)
	if err != nil {
		return 0, fmt.Errorf("scan customer ids: %w", err)
	}
	if err := s.repo.SetCounter(ctx, db, s.opts.CounterName, max); err != nil {
		return 0, fmt.Errorf("set counter: %w", err)
	}

	s.metrics.IncReconcile(trigger, previous, max)
	if previous != max && trigger != obsmetrics.ReconcileTriggerReserve {
		s.log.Info("customer counter drift corrected",
			zap.String("trigger", trigger),
			zap.Int64("previous", previous),
			zap.Int64("max", max),
		)
	}
	return max, nil
}

func (s *Service) normalizeRequest(req domain.AllocateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	email := normalizeEmail(req.Email)
	if email != "" && (!strings.Contains(email, "@") || strings.ContainsAny(email, " \t")) {
		return domain.Customer{}, domain.ErrInvalidEmail
	}

	return domain.Customer{
		Name:  name,
		Email: email,
	}, nil
}
