package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multigateway-api/models"
)

func sampleTransaction(id, gateway, orderID string, at time.Time) *models.Transaction {
	return &models.Transaction{
		ID:            id,
		Gateway:       gateway,
		Action:        models.ActionPurchase,
		Amount:        1000,
		Currency:      "USD",
		MaskedCard:    "411111XXXXXX1111",
		OrderID:       orderID,
		Authorization: "auth-" + id,
		Success:       true,
		Message:       "approved",
		Test:          true,
		CreatedAt:     at,
	}
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	gw := "gw-" + uuid.NewString()[:8]

	first := sampleTransaction(uuid.NewString(), gw, "order-1", base)
	second := sampleTransaction(uuid.NewString(), gw, "order-2", base.Add(time.Minute))
	require.NoError(t, s.SaveTransaction(ctx, first))
	require.NoError(t, s.SaveTransaction(ctx, second))
	assert.ErrorIs(t, s.SaveTransaction(ctx, first), ErrConflict)

	got, err := s.GetTransaction(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Authorization, got.Authorization)
	assert.Equal(t, models.ActionPurchase, got.Action)
	assert.True(t, got.CreatedAt.Equal(base))

	_, err = s.GetTransaction(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListTransactions(ctx, models.TransactionFilter{Gateway: gw})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	list, err = s.ListTransactions(ctx, models.TransactionFilter{Gateway: gw, OrderID: "order-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	list, err = s.ListTransactions(ctx, models.TransactionFilter{Gateway: gw, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	card := &models.StoredCard{
		Token:       "tok-1",
		Gateway:     gw,
		MaskedCard:  "411111XXXXXX1111",
		Brand:       models.BrandVisa,
		Fingerprint: "ab12",
		ExpMonth:    12,
		ExpYear:     2030,
		CreatedAt:   base,
	}
	require.NoError(t, s.SaveStoredCard(ctx, card))
	assert.ErrorIs(t, s.SaveStoredCard(ctx, card), ErrConflict)

	stored, err := s.GetStoredCard(ctx, gw, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "ab12", stored.Fingerprint)

	require.NoError(t, s.DeleteStoredCard(ctx, gw, "tok-1"))
	assert.ErrorIs(t, s.DeleteStoredCard(ctx, gw, "tok-1"), ErrNotFound)
	_, err = s.GetStoredCard(ctx, gw, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLStore(t *testing.T) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set")
	}
	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = DriverMySQL
	}
	conn, err := NewConnection(DatabaseConfig{Driver: driver, DSN: dsn}, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Migrate(context.Background()))
	exerciseStore(t, conn)
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, q, rebind(DriverMySQL, q))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", rebind(DriverPostgres, q))
}

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN(DriverMySQL, DatabaseConfig{Host: "db:3306", User: "u", Password: "p", DBName: "payments"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "u:p@tcp(db:3306)/payments")
	assert.Contains(t, dsn, "parseTime=true")

	dsn, err = buildDSN(DriverPostgres, DatabaseConfig{Host: "db:5432", User: "u", Password: "p", DBName: "payments"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/payments?sslmode=disable", dsn)

	dsn, err = buildDSN(DriverPostgres, DatabaseConfig{DSN: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", dsn)

	_, err = buildDSN("oracle", DatabaseConfig{})
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, isUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(fmt.Errorf("boom")))
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(DatabaseConfig{Driver: DriverMemory}, nil)
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}
