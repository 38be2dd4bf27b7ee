package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vaultra/cardbank/internal/card/domain"
	"github.com/vaultra/cardbank/internal/card/store"
)

// setupStore starts a disposable Postgres and returns a migrated store.
func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "cards",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/cards?sslmode=disable", host, port.Port())
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))

	st := NewStoreWithDB(db)
	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedCard(t *testing.T, st *Store, id, userID, number string, balance int64, currency string) {
	t.Helper()
	require.NoError(t, st.CreateCard(context.Background(), domain.Card{
		ID:             id,
		UserID:         userID,
		CardNumber:     number,
		CardType:       domain.TypeDebit,
		Provider:       domain.ProviderVisa,
		Status:         domain.StatusActive,
		Balance:        decimal.NewFromInt(balance),
		Currency:       currency,
		ExpirationDate: time.Now().AddDate(4, 0, 0),
		CVVHash:        "x",
	}))
}

func balanceOf(t *testing.T, st *Store, id string) decimal.Decimal {
	t.Helper()
	c, err := st.GetCardByID(context.Background(), id)
	require.NoError(t, err)
	return c.Balance
}

func TestTransferMovesExactAmount(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	seedCard(t, st, "a", "alice", "4000000000000001", 100, "USD")
	seedCard(t, st, "b", "bob", "4000000000000002", 0, "USD")

	legs, err := st.Transfer(ctx, "a", "b", decimal.RequireFromString("33.33"), "USD")
	require.NoError(t, err)
	require.Equal(t, "alice", legs.SenderOwner)
	require.Equal(t, "bob", legs.ReceiverOwner)

	require.True(t, balanceOf(t, st, "a").Equal(decimal.RequireFromString("66.67")))
	require.True(t, balanceOf(t, st, "b").Equal(decimal.RequireFromString("33.33")))
}

func TestTransferBusinessChecksLeaveBalancesUntouched(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	seedCard(t, st, "a", "alice", "4000000000000001", 10, "USD")
	seedCard(t, st, "b", "bob", "4000000000000002", 5, "EUR")
	seedCard(t, st, "c", "carol", "4000000000000003", 5, "USD")

	_, err := st.Transfer(ctx, "a", "missing", decimal.NewFromInt(1), "USD")
	require.ErrorIs(t, err, domain.ErrCardNotFound)

	_, err = st.Transfer(ctx, "a", "c", decimal.NewFromInt(11), "USD")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = st.Transfer(ctx, "a", "b", decimal.NewFromInt(1), "USD")
	require.ErrorIs(t, err, domain.ErrCurrencyMismatch)

	require.True(t, balanceOf(t, st, "a").Equal(decimal.NewFromInt(10)))
	require.True(t, balanceOf(t, st, "b").Equal(decimal.NewFromInt(5)))
	require.True(t, balanceOf(t, st, "c").Equal(decimal.NewFromInt(5)))
}

// TestConcurrentTransfersConserveTotal hammers a pair of cards with
// opposite-direction transfers. The row locks must serialize all of
// them without deadlock and the combined balance must not drift.
func TestConcurrentTransfersConserveTotal(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	seedCard(t, st, "a", "alice", "4000000000000001", 1000, "USD")
	seedCard(t, st, "b", "bob", "4000000000000002", 1000, "USD")

	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)

	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := st.Transfer(ctx, "a", "b", decimal.NewFromInt(3), "USD")
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := st.Transfer(ctx, "b", "a", decimal.NewFromInt(3), "USD")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	total := balanceOf(t, st, "a").Add(balanceOf(t, st, "b"))
	require.True(t, total.Equal(decimal.NewFromInt(2000)), "total drifted to %s", total)
}

func TestCreateCardDuplicateNumber(t *testing.T) {
	st := setupStore(t)

	seedCard(t, st, "a", "alice", "4000000000000001", 0, "USD")
	err := st.CreateCard(context.Background(), domain.Card{
		ID:             "b",
		UserID:         "bob",
		CardNumber:     "4000000000000001",
		CardType:       domain.TypeDebit,
		Provider:       domain.ProviderVisa,
		Status:         domain.StatusActive,
		Balance:        decimal.Zero,
		Currency:       "USD",
		ExpirationDate: time.Now().AddDate(4, 0, 0),
		CVVHash:        "x",
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestSetStatusReturnsUpdatedRow(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	seedCard(t, st, "a", "alice", "4000000000000001", 0, "USD")

	c, err := st.SetStatus(ctx, "a", domain.StatusBlocked)
	require.NoError(t, err)
	require.Equal(t, domain.StatusBlocked, c.Status)

	_, err = st.SetStatus(ctx, "missing", domain.StatusBlocked)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListByUser(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	seedCard(t, st, "a", "alice", "4000000000000001", 0, "USD")
	seedCard(t, st, "b", "alice", "4000000000000002", 0, "USD")
	seedCard(t, st, "c", "bob", "4000000000000003", 0, "USD")

	cards, err := st.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cards, 2)

	none, err := st.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, none)
}
