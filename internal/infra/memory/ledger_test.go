package memory

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/loan"
	"hive_fund/internal/domain/transaction"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_DisburseRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := s.Ledger()
	now := time.Now()

	_, err := l.Credit(ctx, transaction.New(uuid.New(), decimal.NewFromInt(40), transaction.TypeContribution, now))
	require.NoError(t, err)

	ln := loan.Originate(uuid.New(), loan.Quote(decimal.NewFromInt(50), decimal.RequireFromString("0.10"), 1, now), now)
	pool, err := l.Disburse(ctx, ln, transaction.New(ln.UserID, ln.Principal, transaction.TypeLoan, now))
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
	assert.True(t, decimal.NewFromInt(40).Equal(pool.Available))

	_, err = s.Loans().GetByID(ctx, ln.ID)
	assert.ErrorIs(t, err, loan.ErrLoanNotFound)
	txs, err := s.Transactions().ListByUser(ctx, ln.UserID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestLedger_RandomOperationsKeepPoolBalanced(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := s.Ledger()
	r := rand.New(rand.NewPCG(1, 2))
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var active []uuid.UUID
	for i := 0; i < 2000; i++ {
		user := uuid.New()
		amount := decimal.NewFromInt(int64(r.IntN(100) + 5))
		switch op := r.IntN(4); {
		case op == 0:
			_, err := l.Credit(ctx, transaction.New(user, amount, transaction.TypeContribution, now))
			require.NoError(t, err)
		case op == 1:
			ln := loan.Originate(user, loan.Quote(amount, decimal.RequireFromString("0.15"), 1, now), now)
			_, err := l.Disburse(ctx, ln, transaction.New(user, amount, transaction.TypeLoan, now))
			if err == nil {
				active = append(active, ln.ID)
			}
		case op == 2 && len(active) > 0:
			id := active[r.IntN(len(active))]
			current, err := s.Loans().GetByID(ctx, id)
			require.NoError(t, err)
			if current.Status != loan.StatusActive {
				continue
			}
			pay := decimal.Min(amount, current.Balance)
			_, _, err = l.Repay(ctx, id, transaction.New(current.UserID, pay, transaction.TypeRepayment, now))
			require.NoError(t, err)
		case op == 3 && len(active) > 0:
			id := active[r.IntN(len(active))]
			_, _, err := l.WriteOff(ctx, id, now)
			if err != nil {
				require.ErrorIs(t, err, loan.ErrLoanNotActive)
			}
		}
		pool, err := l.Snapshot(ctx)
		require.NoError(t, err)
		require.True(t, pool.Balanced(), "step %d: %+v", i, pool)
	}
}

func TestLedger_ConcurrentDisbursements(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := s.Ledger()
	now := time.Now()
	_, err := l.Credit(ctx, transaction.New(uuid.New(), decimal.NewFromInt(1000), transaction.TypeContribution, now))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ln := loan.Originate(uuid.New(), loan.Quote(decimal.NewFromInt(45), decimal.RequireFromString("0.05"), 1, now), now)
			_, _ = l.Disburse(ctx, ln, transaction.New(ln.UserID, ln.Principal, transaction.TypeLoan, now))
		}()
	}
	wg.Wait()

	pool, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, pool.Balanced())
	// 22 loans of 45 fit in 1000
	assert.True(t, decimal.NewFromInt(10).Equal(pool.Available), pool.Available.String())
}

func TestTransactionRepository_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Transactions()
	user := uuid.New()
	now := time.Now()

	first := transaction.New(user, decimal.NewFromInt(1), transaction.TypeContribution, now)
	second := transaction.New(user, decimal.NewFromInt(2), transaction.TypeContribution, now)
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, transaction.New(uuid.New(), decimal.NewFromInt(3), transaction.TypeContribution, now)))
	require.NoError(t, repo.Append(ctx, second))

	txs, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, second.ID, txs[0].ID)
	assert.Equal(t, first.ID, txs[1].ID)
}

func TestCreditStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	store := s.Credit()
	user := uuid.New()

	score, err := store.GetScore(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, score)

	require.NoError(t, store.ApplyDelta(ctx, user, "on_time_payment", 5))
	require.NoError(t, store.ApplyDelta(ctx, user, "cycle_complete", 50))

	score, err = store.GetScore(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 55, score)

	history, err := store.History(ctx, user)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "cycle_complete", history[0].Reason)
	assert.Equal(t, 5, history[0].ScoreBefore)
	assert.Equal(t, 55, history[0].ScoreAfter)
}
