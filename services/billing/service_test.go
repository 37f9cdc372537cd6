package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multigateway-api/database"
	"multigateway-api/models"
	"multigateway-api/queue"
	"multigateway-api/services/events"
	"multigateway-api/services/idempotency"
	"multigateway-api/services/payment"
	"multigateway-api/services/payment/bogus"
	"multigateway-api/services/payment/registry"
	"multigateway-api/types"
	"multigateway-api/utils"
)

const (
	approvedCard = "4111111111111111"
	declinedCard = "4000000000000002"
	networkCard  = "4000000000000093"
)

type noSleep struct{}

func (noSleep) Sleep(context.Context, time.Duration) error { return nil }

// scriptedGateway fails purchases with the queued errors before delegating
// to the bogus gateway, and records the order id of every attempt.
type scriptedGateway struct {
	*bogus.Gateway
	errs     []error
	orderIDs []string
}

func (g *scriptedGateway) Purchase(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	g.orderIDs = append(g.orderIDs, opts.OrderID)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return nil, err
	}
	return g.Gateway.Purchase(ctx, money, source, opts)
}

type fakeQueue struct {
	jobs []*queue.Job
}

func (q *fakeQueue) Enqueue(_ context.Context, jobType string, data interface{}) (*queue.Job, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	job := &queue.Job{ID: fmt.Sprintf("job-%d", len(q.jobs)+1), Type: jobType, Data: raw}
	q.jobs = append(q.jobs, job)
	return job, nil
}

type fixture struct {
	svc       *Service
	store     *database.MemoryStore
	idem      *idempotency.MemoryStore
	publisher *events.MemoryPublisher
	queue     *fakeQueue
	scripted  *scriptedGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bogusGW, err := bogus.New(payment.Config{Mode: payment.ModeTest})
	require.NoError(t, err)

	f := &fixture{
		store:     database.NewMemoryStore(),
		idem:      idempotency.NewMemoryStore(time.Hour),
		publisher: &events.MemoryPublisher{},
		queue:     &fakeQueue{},
		scripted:  &scriptedGateway{Gateway: bogusGW},
	}
	f.svc = NewService(Config{
		Gateways: map[string]payment.Gateway{
			"bogus":    bogusGW,
			"scripted": f.scripted,
		},
		Store:       f.store,
		Idempotency: f.idem,
		Events:      f.publisher,
		Queue:       f.queue,
		Retry:       payment.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2, Sleeper: noSleep{}},
		PANHashKey:  []byte("pan-key"),
		Currencies:  map[string]string{"scripted": "EUR"},
	})
	return f
}

func purchase(gateway, number string) Request {
	card := &models.CreditCard{Number: number, Month: 12, Year: 2099, FirstName: "Longbob", LastName: "Longsen", VerificationValue: "123"}
	return Request{Gateway: gateway, Action: models.ActionPurchase, Amount: 1000, Source: card}
}

func TestExecuteApprovedPurchase(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Execute(context.Background(), purchase("bogus", approvedCard))
	require.NoError(t, err)

	assert.True(t, result.Response.Success)
	assert.False(t, result.Replayed)

	tx := result.Transaction
	assert.Equal(t, "bogus", tx.Gateway)
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, "411111XXXXXX1111", tx.MaskedCard)
	assert.Equal(t, bogus.Authorization, tx.Authorization)
	assert.NotEmpty(t, tx.OrderID)
	assert.Equal(t, "D", tx.AVSCode)

	saved, err := f.store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, saved.ID)

	published := f.publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, models.EventTransactionSucceeded, published[0].Type)
}

func TestExecuteDeclineIsNotAnError(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Execute(context.Background(), purchase("bogus", declinedCard))
	require.NoError(t, err)
	assert.False(t, result.Response.Success)
	assert.Equal(t, models.ErrorCardDeclined, result.Transaction.ErrorCode)
	assert.Equal(t, models.EventTransactionFailed, f.publisher.Events()[0].Type)
}

func TestExecuteNetworkErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	req := purchase("bogus", networkCard)
	req.IdempotencyKey = "key-network"

	_, err := f.svc.Execute(context.Background(), req)
	assert.ErrorIs(t, err, payment.ErrNetwork)
	assert.Empty(t, f.publisher.Events())

	list, err := f.store.ListTransactions(context.Background(), models.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	rec, err := f.idem.Reserve(context.Background(), req.idempotencyScope())
	require.NoError(t, err, "key is released after an error")
	assert.Nil(t, rec)
}

func TestRetryReusesOrderID(t *testing.T) {
	f := newFixture(t)
	f.scripted.errs = []error{payment.ErrTimeout, payment.ErrNetwork}

	result, err := f.svc.Execute(context.Background(), purchase("scripted", approvedCard))
	require.NoError(t, err)
	assert.True(t, result.Response.Success)
	assert.Equal(t, "EUR", result.Transaction.Currency)

	require.Len(t, f.scripted.orderIDs, 3)
	assert.Equal(t, f.scripted.orderIDs[0], f.scripted.orderIDs[1])
	assert.Equal(t, f.scripted.orderIDs[0], f.scripted.orderIDs[2])
}

func TestNonRetriableErrorIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.scripted.errs = []error{payment.ErrInvalidResponse}

	_, err := f.svc.Execute(context.Background(), purchase("scripted", approvedCard))
	assert.ErrorIs(t, err, payment.ErrInvalidResponse)
	assert.Len(t, f.scripted.orderIDs, 1)
}

func TestIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	req := purchase("scripted", approvedCard)
	req.IdempotencyKey = "order-42"

	first, err := f.svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, payment.DeriveOrderID(req.idempotencyScope(), derivedOrderIDLength), first.Transaction.OrderID)

	second, err := f.svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, first.Response.Authorization, second.Response.Authorization)
	assert.Len(t, f.scripted.orderIDs, 1, "gateway is called once")
	assert.Len(t, f.publisher.Events(), 1)
}

func TestIdempotencyKeyInProgress(t *testing.T) {
	f := newFixture(t)
	req := purchase("bogus", approvedCard)
	req.IdempotencyKey = "busy"
	_, err := f.idem.Reserve(context.Background(), req.idempotencyScope())
	require.NoError(t, err)

	_, err = f.svc.Execute(context.Background(), req)
	assert.ErrorIs(t, err, idempotency.ErrInProgress)
}

func TestIdempotencyKeyIsScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := purchase("bogus", approvedCard)
	first.IdempotencyKey = "shared-key"
	purchased, err := f.svc.Execute(ctx, first)
	require.NoError(t, err)

	otherGateway := purchase("scripted", approvedCard)
	otherGateway.IdempotencyKey = "shared-key"
	result, err := f.svc.Execute(ctx, otherGateway)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, "scripted", result.Transaction.Gateway)
	assert.Len(t, f.scripted.orderIDs, 1, "scripted gateway is called")

	refund := Request{
		Gateway:        "bogus",
		Action:         models.ActionRefund,
		Amount:         1000,
		Authorization:  purchased.Response.Authorization,
		IdempotencyKey: "shared-key",
	}
	result, err = f.svc.Execute(ctx, refund)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, models.ActionRefund, result.Transaction.Action)

	otherMerchant := first
	otherMerchant.MerchantID = "merchant-2"
	result, err = f.svc.Execute(ctx, otherMerchant)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.NotEqual(t, purchased.Transaction.ID, result.Transaction.ID)

	replay, err := f.svc.Execute(ctx, first)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, purchased.Transaction.ID, replay.Transaction.ID)
}

func TestExplicitOrderIDWins(t *testing.T) {
	f := newFixture(t)
	req := purchase("scripted", approvedCard)
	req.IdempotencyKey = "k"
	req.Options = &types.TransactionOptions{OrderID: "my-order"}

	result, err := f.svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "my-order", result.Transaction.OrderID)
	assert.Equal(t, []string{"my-order"}, f.scripted.orderIDs)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Execute(ctx, Request{Gateway: "bogus", Action: "charge"})
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	_, err = f.svc.Execute(ctx, Request{Gateway: "nope", Action: models.ActionVoid, Authorization: "x"})
	assert.ErrorIs(t, err, registry.ErrGatewayNotRegistered)

	req := purchase("bogus", approvedCard)
	req.Amount = -1
	_, err = f.svc.Execute(ctx, req)
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)

	_, err = f.svc.Execute(ctx, purchase("bogus", "4111111111111112"))
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	expired := purchase("bogus", approvedCard)
	expired.Source.(*models.CreditCard).Year = 2001
	_, err = f.svc.Execute(ctx, expired)
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	_, err = f.svc.Execute(ctx, Request{Gateway: "bogus", Action: models.ActionPurchase, Amount: 100})
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	_, err = f.svc.Execute(ctx, Request{Gateway: "bogus", Action: models.ActionCapture, Amount: 100})
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	_, err = f.svc.Execute(ctx, Request{Gateway: "bogus", Action: models.ActionStore, Source: models.StoredToken("t")})
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)
}

func TestStoreAndUnstoreTrackCards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := purchase("bogus", approvedCard)
	req.Action = models.ActionStore
	req.Amount = 0
	result, err := f.svc.Execute(ctx, req)
	require.NoError(t, err)
	require.True(t, result.Response.Success)

	card, err := f.store.GetStoredCard(ctx, "bogus", "tok_1111")
	require.NoError(t, err)
	assert.Equal(t, utils.HashPAN([]byte("pan-key"), approvedCard), card.Fingerprint)
	assert.Equal(t, models.BrandVisa, card.Brand)
	assert.Equal(t, "411111XXXXXX1111", card.MaskedCard)

	_, err = f.svc.Execute(ctx, Request{Gateway: "bogus", Action: models.ActionUnstore, Authorization: "tok_1111"})
	require.NoError(t, err)
	_, err = f.store.GetStoredCard(ctx, "bogus", "tok_1111")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestEnqueueAndProcessJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enqueue(ctx, purchase("bogus", approvedCard))
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	job, err := f.svc.Enqueue(ctx, Request{Gateway: "bogus", Action: models.ActionVoid, Authorization: bogus.Authorization})
	require.NoError(t, err)
	assert.Equal(t, "void", job.Type)
	assert.NotContains(t, string(job.Data), "number")

	require.NoError(t, f.svc.ProcessJob(ctx, job))
	list, err := f.svc.ListTransactions(ctx, models.TransactionFilter{Gateway: "bogus"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.ActionVoid, list[0].Action)

	failing, err := f.svc.Enqueue(ctx, Request{Gateway: "bogus", Action: models.ActionRefund, Amount: 100, Authorization: "error"})
	require.NoError(t, err)
	err = f.svc.ProcessJob(ctx, failing)
	assert.ErrorIs(t, err, payment.ErrNetwork)
	assert.False(t, queue.IsPermanent(err))
}

func TestProcessJobMarksUnfixableErrorsPermanent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.ProcessJob(ctx, &queue.Job{ID: "garbled", Type: "void", Data: []byte(`{"amount":"ten"}`)})
	assert.True(t, queue.IsPermanent(err))

	unknown, err := f.svc.Enqueue(ctx, Request{Gateway: "bogus", Action: models.ActionVoid, Authorization: "a"})
	require.NoError(t, err)
	unknown.Data = []byte(`{"gateway":"missing","action":"void","authorization":"a"}`)
	err = f.svc.ProcessJob(ctx, unknown)
	assert.ErrorIs(t, err, registry.ErrGatewayNotRegistered)
	assert.True(t, queue.IsPermanent(err))

	noAuth := &queue.Job{ID: "no-auth", Type: "capture", Data: []byte(`{"gateway":"bogus","action":"capture","amount":100}`)}
	err = f.svc.ProcessJob(ctx, noAuth)
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)
	assert.True(t, queue.IsPermanent(err))
}

func TestEnqueueWithoutQueue(t *testing.T) {
	bogusGW, err := bogus.New(payment.Config{})
	require.NoError(t, err)
	svc := NewService(Config{Gateways: map[string]payment.Gateway{"bogus": bogusGW}})
	_, err = svc.Enqueue(context.Background(), Request{Gateway: "bogus", Action: models.ActionVoid, Authorization: "a"})
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}

func TestGetTransactionNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}
