// Package billing runs gateway calls for the API, the worker and the CLI:
// it validates requests, enforces idempotency, retries transient failures,
// records every outcome and publishes it.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"multigateway-api/database"
	"multigateway-api/metrics"
	"multigateway-api/models"
	"multigateway-api/queue"
	"multigateway-api/services/events"
	"multigateway-api/services/idempotency"
	"multigateway-api/services/payment"
	"multigateway-api/services/payment/registry"
	"multigateway-api/tracing"
	"multigateway-api/utils"
)

// Digits of an order id derived from an idempotency key. All-numeric ids
// are accepted by every adapter.
const derivedOrderIDLength = 12

var ErrQueueUnavailable = errors.New("job queue is not configured")

// JobQueue is the subset of *queue.Queue the service needs.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, data interface{}) (*queue.Job, error)
}

type Config struct {
	Gateways    map[string]payment.Gateway
	Store       database.Store
	Idempotency idempotency.Store
	Events      events.Publisher
	Queue       JobQueue
	Retry       payment.RetryPolicy
	PANHashKey  []byte
	Logger      *zap.Logger
	// Currencies maps a gateway name to its default currency. Unlisted
	// gateways default to USD.
	Currencies map[string]string
}

type Service struct {
	gateways    map[string]payment.Gateway
	store       database.Store
	idempotency idempotency.Store
	events      events.Publisher
	queue       JobQueue
	retry       payment.RetryPolicy
	panHashKey  []byte
	currencies  map[string]string
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() string
}

func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := cfg.Store
	if store == nil {
		store = database.NewMemoryStore()
	}
	idem := cfg.Idempotency
	if idem == nil {
		idem = idempotency.NewMemoryStore(idempotency.DefaultTTL)
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = payment.DefaultRetryPolicy()
	}
	gateways := cfg.Gateways
	if gateways == nil {
		gateways = map[string]payment.Gateway{}
	}
	return &Service{
		gateways:    gateways,
		store:       store,
		idempotency: idem,
		events:      publisher,
		queue:       cfg.Queue,
		retry:       retry,
		panHashKey:  cfg.PANHashKey,
		currencies:  cfg.Currencies,
		logger:      logger.With(zap.String("component", "billing")),
		tracer:      tracing.Tracer(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Gateway returns a loaded gateway by name.
func (s *Service) Gateway(name string) (payment.Gateway, error) {
	gw, ok := s.gateways[name]
	if !ok {
		return nil, &registry.GatewayError{Gateway: name, Err: registry.ErrGatewayNotRegistered}
	}
	return gw, nil
}

func (s *Service) defaultCurrency(gateway string) string {
	if c := s.currencies[gateway]; c != "" {
		return c
	}
	return "USD"
}

// Execute runs req against its gateway. A processor decline is a Result
// with Response.Success false and a nil error.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, error) {
	gw, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	opts := *req.Options.OrEmpty()
	if opts.Currency == "" {
		opts.Currency = s.defaultCurrency(req.Gateway)
	}
	req.Options = &opts

	idemKey := req.idempotencyScope()
	if idemKey != "" {
		rec, err := s.idempotency.Reserve(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return s.replay(ctx, rec), nil
		}
		if opts.OrderID == "" {
			opts.OrderID = payment.DeriveOrderID(idemKey, derivedOrderIDLength)
		}
	}
	if opts.OrderID == "" && !req.Action.ReferencesAuthorization() {
		opts.OrderID = payment.GenerateOrderID("")
	}

	resp, err := s.call(ctx, gw, req)
	if err != nil {
		if idemKey != "" {
			if relErr := s.idempotency.Release(ctx, idemKey); relErr != nil {
				s.logger.Warn("failed to release idempotency key", zap.Error(relErr))
			}
		}
		return nil, err
	}

	tx := s.record(ctx, req, resp)

	if err := s.events.Publish(ctx, events.EventFor(*tx)); err != nil {
		s.logger.Warn("failed to publish transaction event", zap.String("transaction_id", tx.ID), zap.Error(err))
	}

	if idemKey != "" {
		if err := s.idempotency.Complete(ctx, idemKey, idempotency.Record{
			TransactionID: tx.ID,
			Response:      resp,
		}); err != nil {
			s.logger.Warn("failed to complete idempotency key", zap.Error(err))
		}
	}

	return &Result{Transaction: tx, Response: resp}, nil
}

func (s *Service) validate(req Request) (payment.Gateway, error) {
	if !req.Action.IsValid() {
		return nil, payment.InvalidRequest("unknown action %q", req.Action)
	}
	gw, err := s.Gateway(req.Gateway)
	if err != nil {
		return nil, err
	}
	if req.Amount < 0 {
		return nil, payment.ErrInvalidAmount
	}

	switch req.Action {
	case models.ActionPurchase, models.ActionAuthorize:
		switch src := req.Source.(type) {
		case *models.CreditCard:
			if err := validateCard(src, s.now()); err != nil {
				return nil, err
			}
		case models.StoredToken:
			if src == "" {
				return nil, payment.InvalidRequest("stored token is empty")
			}
		case nil:
			return nil, payment.InvalidRequest("a card or stored token is required")
		default:
			return nil, payment.InvalidRequest("unsupported payment source %T", src)
		}
	case models.ActionStore, models.ActionVerify:
		c := req.card()
		if c == nil {
			return nil, payment.InvalidRequest("%s requires a card", req.Action)
		}
		if err := validateCard(c, s.now()); err != nil {
			return nil, err
		}
	default:
		if req.Authorization == "" {
			return nil, payment.InvalidRequest("%s requires an authorization", req.Action)
		}
	}
	return gw, nil
}

func validateCard(c *models.CreditCard, now time.Time) error {
	if c.CardPresent() && c.Number == "" {
		return nil
	}
	if err := c.Validate(now); err != nil {
		return payment.InvalidRequest("card: %v", err)
	}
	return nil
}

// call invokes the gateway verb with retries inside a span and records metrics.
func (s *Service) call(ctx context.Context, gw payment.Gateway, req Request) (*models.Response, error) {
	action := string(req.Action)
	ctx, span := s.tracer.Start(ctx, "gateway."+action, trace.WithAttributes(
		attribute.String("gateway", req.Gateway),
		attribute.String("action", action),
		attribute.String("order_id", req.Options.OrderID),
		attribute.Int64("amount", req.Amount),
	))
	defer span.End()

	start := time.Now()
	attempts := 0
	resp, err := payment.RetryWithBackoff(ctx, s.retry, func(ctx context.Context) (*models.Response, error) {
		attempts++
		if attempts > 1 {
			metrics.GatewayRetries.WithLabelValues(req.Gateway, action).Inc()
			s.logger.Info("retrying gateway call",
				zap.String("gateway", req.Gateway),
				zap.String("action", action),
				zap.Int("attempt", attempts),
			)
		}
		return dispatch(ctx, gw, req)
	})
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("attempts", attempts))

	if err == nil && resp == nil {
		err = fmt.Errorf("%w: gateway returned no response", payment.ErrInvalidResponse)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveGateway(req.Gateway, action, metrics.OutcomeError, elapsed)
		s.logger.Error("gateway call failed",
			zap.String("gateway", req.Gateway),
			zap.String("action", action),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return nil, err
	}

	outcome := metrics.OutcomeApproved
	if !resp.Success {
		outcome = metrics.OutcomeDeclined
	}
	span.SetAttributes(
		attribute.Bool("success", resp.Success),
		attribute.String("error_code", resp.ErrorCode),
	)
	metrics.ObserveGateway(req.Gateway, action, outcome, elapsed)
	s.logger.Info("gateway call finished",
		zap.String("gateway", req.Gateway),
		zap.String("action", action),
		zap.Bool("success", resp.Success),
		zap.String("error_code", resp.ErrorCode),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

func dispatch(ctx context.Context, gw payment.Gateway, req Request) (*models.Response, error) {
	opts := req.Options
	switch req.Action {
	case models.ActionPurchase:
		return gw.Purchase(ctx, req.Amount, req.Source, opts)
	case models.ActionAuthorize:
		return gw.Authorize(ctx, req.Amount, req.Source, opts)
	case models.ActionCapture:
		return gw.Capture(ctx, req.Amount, req.Authorization, opts)
	case models.ActionRefund:
		return gw.Refund(ctx, req.Amount, req.Authorization, opts)
	case models.ActionVoid:
		return gw.Void(ctx, req.Authorization, opts)
	case models.ActionStore:
		return gw.Store(ctx, req.card(), opts)
	case models.ActionUnstore:
		return gw.Unstore(ctx, req.Authorization, opts)
	case models.ActionVerify:
		return gw.Verify(ctx, req.card(), opts)
	}
	return nil, payment.InvalidRequest("unknown action %q", req.Action)
}

// record persists the transaction and, for store and unstore, the vaulted
// card reference. Persistence failures are logged; the processor outcome
// has already happened and is still returned to the caller.
func (s *Service) record(ctx context.Context, req Request, resp *models.Response) *models.Transaction {
	opts := req.Options
	tx := &models.Transaction{
		ID:                   s.newID(),
		Gateway:              req.Gateway,
		Action:               req.Action,
		Amount:               req.Amount,
		Currency:             opts.Currency,
		OrderID:              opts.OrderID,
		Authorization:        resp.Authorization,
		Success:              resp.Success,
		Message:              resp.Message,
		ErrorCode:            resp.ErrorCode,
		AVSCode:              resp.AVSResult.Code,
		CVVCode:              resp.CVVResult.Code,
		NetworkTransactionID: resp.NetworkTransactionID,
		FraudReview:          resp.FraudReview,
		Test:                 resp.Test,
		IdempotencyKey:       req.IdempotencyKey,
		CreatedAt:            s.now().UTC(),
	}
	if tx.Authorization == "" {
		tx.Authorization = req.Authorization
	}
	if c := req.card(); c != nil && c.Number != "" {
		tx.MaskedCard = c.Display()
	}

	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		s.logger.Error("failed to save transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
	}

	switch {
	case req.Action == models.ActionStore && resp.Success:
		s.saveStoredCard(ctx, req, resp)
	case req.Action == models.ActionUnstore && resp.Success:
		err := s.store.DeleteStoredCard(ctx, req.Gateway, req.Authorization)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			s.logger.Error("failed to delete stored card", zap.Error(err))
		}
	}
	return tx
}

func (s *Service) saveStoredCard(ctx context.Context, req Request, resp *models.Response) {
	c := req.card()
	card := &models.StoredCard{
		Token:       resp.Authorization,
		Gateway:     req.Gateway,
		MaskedCard:  c.Display(),
		Brand:       c.DetectBrand(),
		Fingerprint: utils.HashPAN(s.panHashKey, models.NormalizeNumber(c.Number)),
		ExpMonth:    c.Month,
		ExpYear:     c.Year,
		CustomerID:  req.Options.CustomerID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.SaveStoredCard(ctx, card); err != nil {
		s.logger.Error("failed to save stored card", zap.String("gateway", req.Gateway), zap.Error(err))
	}
}

func (s *Service) replay(ctx context.Context, rec *idempotency.Record) *Result {
	result := &Result{Response: rec.Response, Replayed: true}
	if rec.TransactionID != "" {
		tx, err := s.store.GetTransaction(ctx, rec.TransactionID)
		if err == nil {
			result.Transaction = tx
		} else {
			s.logger.Warn("replayed transaction not found", zap.String("transaction_id", rec.TransactionID), zap.Error(err))
		}
	}
	return result
}

// Enqueue validates req and queues it for the worker. Only verbs that act
// on an earlier authorization can run asynchronously.
func (s *Service) Enqueue(ctx context.Context, req Request) (*queue.Job, error) {
	if !req.Action.ReferencesAuthorization() {
		return nil, payment.InvalidRequest("%s cannot be processed asynchronously", req.Action)
	}
	if _, err := s.validate(req); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, ErrQueueUnavailable
	}
	job, err := s.queue.Enqueue(ctx, string(req.Action), payloadFor(req))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", req.Action, err)
	}
	return job, nil
}

// ProcessJob executes a queued request. A decline completes the job; only
// errors make the worker retry it.
func (s *Service) ProcessJob(ctx context.Context, job *queue.Job) error {
	req, err := decodePayload(job.Data)
	if err != nil {
		return queue.Permanent(err)
	}
	result, err := s.Execute(ctx, req)
	if err != nil {
		if errors.Is(err, idempotency.ErrInProgress) {
			return err
		}
		err = fmt.Errorf("job %s: %w", job.ID, err)
		if !payment.IsRetriable(err) {
			return queue.Permanent(err)
		}
		return err
	}
	s.logger.Info("job processed",
		zap.String("job_id", job.ID),
		zap.String("transaction_id", result.Transaction.ID),
		zap.Bool("success", result.Response.Success),
	)
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	return s.store.ListTransactions(ctx, filter)
}

// GatewayNames returns the names of the loaded gateways.
func (s *Service) GatewayNames() []string {
	names := make([]string, 0, len(s.gateways))
	for name := range s.gateways {
		names = append(names, name)
	}
	return names
}

// Ping checks the transaction store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
