package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"finance-tracker/internal/apperr"
	"finance-tracker/internal/events"
	"finance-tracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

// recorder keeps published events in memory.
type recorder struct {
	ch chan events.Event
}

func newRecorder(size int) *recorder {
	return &recorder{ch: make(chan events.Event, size)}
}

func (r *recorder) Publish(ctx context.Context, e events.Event) error {
	select {
	case r.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events drains everything recorded so far.
func (r *recorder) Events() []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// LedgerTestSuite exercises the ledger over the in-memory store
type LedgerTestSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	recorder *recorder
	ledger   *Ledger
}

func (suite *LedgerTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.now = time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	suite.recorder = newRecorder(64)
	suite.ledger = New(NewMemoryStore(),
		WithPublisher(suite.recorder),
		WithClock(func() time.Time { return suite.now }),
	)
}

func (suite *LedgerTestSuite) advance(d time.Duration) {
	suite.now = suite.now.Add(d)
}

func (suite *LedgerTestSuite) TestCreateAndList() {
	tx, err := suite.ledger.Create(suite.ctx, alice, models.KindIncome, amount("100"), "  Salary ")
	require.NoError(suite.T(), err)

	assert.NotEmpty(suite.T(), tx.ID)
	assert.Equal(suite.T(), alice, tx.OwnerID)
	assert.Equal(suite.T(), "Salary", tx.Description)
	assert.Equal(suite.T(), suite.now, tx.CreatedAt)
	assert.Equal(suite.T(), tx.CreatedAt, tx.UpdatedAt)

	list, err := suite.ledger.List(suite.ctx, alice)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 1)
	assert.Equal(suite.T(), models.KindIncome, list[0].Kind)
	assert.True(suite.T(), amount("100").Equal(list[0].Amount))

	others, err := suite.ledger.List(suite.ctx, bob)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), others, "transactions must be invisible to other users")
	assert.NotNil(suite.T(), others)
}

func (suite *LedgerTestSuite) TestListNewestFirst() {
	for _, desc := range []string{"first", "second", "third"} {
		_, err := suite.ledger.Create(suite.ctx, alice, models.KindExpense, amount("1"), desc)
		require.NoError(suite.T(), err)
		suite.advance(time.Minute)
	}

	list, err := suite.ledger.List(suite.ctx, alice)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 3)
	assert.Equal(suite.T(), "third", list[0].Description)
	assert.Equal(suite.T(), "second", list[1].Description)
	assert.Equal(suite.T(), "first", list[2].Description)
}

func (suite *LedgerTestSuite) TestCreateValidation() {
	tests := []struct {
		name   string
		kind   models.Kind
		amount string
		desc   string
		want   error
	}{
		{"unknown kind", "transfer", "10", "", ErrInvalidKind},
		{"empty kind", "", "10", "", ErrInvalidKind},
		{"zero amount", models.KindIncome, "0", "", ErrInvalidAmount},
		{"negative amount", models.KindExpense, "-5", "", ErrInvalidAmount},
		{"huge exponent", models.KindIncome, "1e20000000", "", ErrInvalidAmount},
		{"tiny exponent", models.KindExpense, "1e-20000000", "", ErrInvalidAmount},
		{"at upper bound", models.KindIncome, "1000000000000000", "", ErrInvalidAmount},
		{"too many decimal places", models.KindIncome, "0.000000001", "", ErrInvalidAmount},
		{"long description", models.KindExpense, "5", strings.Repeat("x", MaxDescriptionLength+1), ErrDescriptionTooLong},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.ledger.Create(suite.ctx, alice, tt.kind, amount(tt.amount), tt.desc)
			assert.ErrorIs(suite.T(), err, tt.want)
			assert.Equal(suite.T(), apperr.Validation, apperr.KindOf(err))
		})
	}

	list, err := suite.ledger.List(suite.ctx, alice)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), list)
	assert.Empty(suite.T(), suite.recorder.Events())
}

func (suite *LedgerTestSuite) TestCreateAmountBounds() {
	for _, a := range []string{"0.00000001", "999999999999999.99999999", "12.50", "3e2"} {
		tx, err := suite.ledger.Create(suite.ctx, alice, models.KindIncome, amount(a), "")
		require.NoError(suite.T(), err, a)
		assert.True(suite.T(), amount(a).Equal(tx.Amount))
	}
}

func (suite *LedgerTestSuite) TestUpdateDescriptionOnly() {
	tx, err := suite.ledger.Create(suite.ctx, alice, models.KindExpense, amount("40"), "Groceries")
	require.NoError(suite.T(), err)

	suite.advance(time.Hour)
	desc := "Weekly groceries"
	updated, err := suite.ledger.Update(suite.ctx, alice, tx.ID, models.TransactionPatch{Description: &desc})
	require.NoError(suite.T(), err)

	list, err := suite.ledger.List(suite.ctx, alice)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 1)

	got := list[0]
	assert.Equal(suite.T(), "Weekly groceries", got.Description)
	assert.Equal(suite.T(), models.KindExpense, got.Kind)
	assert.True(suite.T(), amount("40").Equal(got.Amount))
	assert.Equal(suite.T(), tx.CreatedAt, got.CreatedAt)
	assert.True(suite.T(), got.UpdatedAt.After(tx.UpdatedAt))
	assert.Equal(suite.T(), updated.UpdatedAt, got.UpdatedAt)
}

func (suite *LedgerTestSuite) TestUpdateAdvancesTimestampWithFrozenClock() {
	tx, err := suite.ledger.Create(suite.ctx, alice, models.KindIncome, amount("1"), "")
	require.NoError(suite.T(), err)

	a := amount("2")
	updated, err := suite.ledger.Update(suite.ctx, alice, tx.ID, models.TransactionPatch{Amount: &a})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), updated.UpdatedAt.After(tx.UpdatedAt))
}

func (suite *LedgerTestSuite) TestUpdateKindAndAmount() {
	tx, err := suite.ledger.Create(suite.ctx, alice, models.KindExpense, amount("40"), "Refund")
	require.NoError(suite.T(), err)

	kind := models.KindIncome
	a := amount("42.50")
	updated, err := suite.ledger.Update(suite.ctx, alice, tx.ID, models.TransactionPatch{Kind: &kind, Amount: &a})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.KindIncome, updated.Kind)
	assert.True(suite.T(), a.Equal(updated.Amount))
	assert.Equal(suite.T(), "Refund", updated.Description)
}

func (suite *LedgerTestSuite) TestUpdateValidation() {
	tx, err := suite.ledger.Create(suite.ctx, alice, models.KindExpense, amount("40"), "")
	require.NoError(suite.T(), err)

	bad := models.Kind("gift")
	_, err = suite.ledger.Update(suite.ctx, alice, tx.ID, models.TransactionPatch{Kind: &bad})
	assert.ErrorIs(suite.T(), err, ErrInvalidKind)

	for _, a := range []decimal.Decimal{decimal.Zero, amount("1e20000000"), amount("1e-20000000")} {
		_, err = suite.ledger.Update(suite.ctx, alice, tx.ID, models.TransactionPatch{Amount: &a})
		assert.ErrorIs(suite.T(), err, ErrInvalidAmount, a.Exponent())
	}

	got, err := suite.ledger.Get(suite.ctx, alice, tx.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), *tx, *got, "failed updates must leave the record unchanged")
}

func (suite *LedgerTestSuite) TestUpdateNotFound() {
	tx, err := suite.ledger.Create(suite.ctx, alice, models.KindExpense, amount("40"), "mine")
	require.NoError(suite.T(), err)

	desc := "hijacked"
	_, err = suite.ledger.Update(suite.ctx, bob, tx.ID, models.TransactionPatch{Description: &desc})
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	_, err = suite.ledger.Update(suite.ctx, alice, "missing", models.TransactionPatch{Description: &desc})
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	assert.Equal(suite.T(), apperr.NotFound, apperr.KindOf(err))

	got, err := suite.ledger.Get(suite.ctx, alice, tx.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "mine", got.Description)
}

func (suite *LedgerTestSuite) TestDelete() {
	tx, err := suite.ledger.Create(suite.ctx, alice, models.KindExpense, amount("40"), "")
	require.NoError(suite.T(), err)

	assert.ErrorIs(suite.T(), suite.ledger.Delete(suite.ctx, bob, tx.ID), ErrNotFound)
	require.NoError(suite.T(), suite.ledger.Delete(suite.ctx, alice, tx.ID))
	assert.ErrorIs(suite.T(), suite.ledger.Delete(suite.ctx, alice, tx.ID), ErrNotFound)

	list, err := suite.ledger.List(suite.ctx, alice)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), list)
}

func (suite *LedgerTestSuite) TestPublishesEvents() {
	tx, err := suite.ledger.Create(suite.ctx, alice, models.KindIncome, amount("5"), "")
	require.NoError(suite.T(), err)
	desc := "changed"
	_, err = suite.ledger.Update(suite.ctx, alice, tx.ID, models.TransactionPatch{Description: &desc})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.ledger.Delete(suite.ctx, alice, tx.ID))

	got := suite.recorder.Events()
	require.Len(suite.T(), got, 3)
	assert.Equal(suite.T(), events.TransactionCreated, got[0].Type)
	assert.Equal(suite.T(), events.TransactionUpdated, got[1].Type)
	assert.Equal(suite.T(), events.TransactionDeleted, got[2].Type)
	for _, e := range got {
		assert.Equal(suite.T(), tx.ID, e.TransactionID)
		assert.Equal(suite.T(), alice, e.OwnerID)
	}
}

func (suite *LedgerTestSuite) TestConcurrentUpdatesAreSerialized() {
	l := New(NewMemoryStore())
	tx, err := l.Create(suite.ctx, alice, models.KindIncome, amount("1"), "")
	require.NoError(suite.T(), err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := amount("1").Add(decimal.NewFromInt(int64(i)))
			_, err := l.Update(suite.ctx, alice, tx.ID, models.TransactionPatch{Amount: &a})
			assert.NoError(suite.T(), err)
		}()
	}
	wg.Wait()

	got, err := l.Get(suite.ctx, alice, tx.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), got.UpdatedAt.After(tx.UpdatedAt))
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func TestStoreFailureIsInternal(t *testing.T) {
	l := New(failingStore{})
	ctx := context.Background()

	_, err := l.Create(ctx, alice, models.KindIncome, amount("1"), "")
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))

	_, err = l.List(ctx, alice)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))

	err = l.Delete(ctx, alice, "x")
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	l := New(NewMemoryStore(), WithPublisher(failingPublisher{}))

	tx, err := l.Create(context.Background(), alice, models.KindIncome, amount("1"), "")
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
}

var errBackend = errors.New("backend unavailable")

type failingStore struct{}

func (failingStore) InsertTransaction(context.Context, *models.Transaction) error { return errBackend }
func (failingStore) ListTransactions(context.Context, string) ([]models.Transaction, error) {
	return nil, errBackend
}
func (failingStore) GetTransaction(context.Context, string, string) (*models.Transaction, error) {
	return nil, errBackend
}
func (failingStore) UpdateTransaction(context.Context, *models.Transaction) error { return errBackend }
func (failingStore) DeleteTransaction(context.Context, string, string) error      { return errBackend }

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error { return errBackend }
