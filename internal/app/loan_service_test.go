package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/loan"
	"hive_fund/internal/domain/notification"
	"hive_fund/internal/domain/transaction"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		score    int
		tier     string
		label    string
		eligible bool
		max      string
	}{
		{0, "Seedling", "New", false, "0"},
		{299, "Seedling", "Building", false, "0"},
		{300, "Growing", "Growing", true, "50"},
		{550, "Established", "Excellent", true, "200"},
		{700, "Trusted", "Excellent", true, "500"},
	}
	for _, tt := range tests {
		user := uuid.New()
		f.store.SetScore(user, tt.score)
		elig, err := f.app.Loans.CheckEligibility(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, tt.score, elig.Score)
		assert.Equal(t, tt.tier, elig.Tier)
		assert.Equal(t, tt.label, elig.ScoreLabel)
		assert.Equal(t, tt.eligible, elig.Eligible)
		assert.True(t, dec(tt.max).Equal(elig.MaxAmount), "score %d", tt.score)
	}
}

func TestApply_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1000)

	newcomer := uuid.New()
	growing := uuid.New()
	f.store.SetScore(growing, 350)

	tests := []struct {
		name   string
		user   uuid.UUID
		amount string
		tenure int
		reason string
	}{
		{"below minimum", growing, "4.99", 1, "minimum loan amount is $5.00"},
		{"sub-cent amount", growing, "5.555", 1, "loan amount must have at most 2 decimal places"},
		{"negative tenure", growing, "20", -1, "tenure must be at least 1 month"},
		{"not eligible", newcomer, "20", 1, "not eligible for loans. Build your credit score to at least 300"},
		{"over tier limit", growing, "50.01", 1, "loan limit exceeded. Your maximum is $50.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.app.Loans.Apply(ctx, tt.user, dec(tt.amount), tt.tenure)
			require.Error(t, err)
			assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
			assert.Equal(t, tt.reason, apperr.ReasonOf(err))
		})
	}

	pool, err := f.app.Contributions.PoolSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(pool.Available))
}

func TestApply_DisbursesFromPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)
	user := uuid.New()
	f.store.SetScore(user, 350)

	got, err := f.app.Loans.Apply(ctx, user, dec("50"), 0)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusActive, got.Loan.Status)
	assert.True(t, dec("7.5").Equal(got.Terms.Interest))
	assert.True(t, dec("57.5").Equal(got.Loan.Balance))
	assert.Equal(t, day0.AddDate(0, 1, 0), got.Loan.DueDate)
	assert.Equal(t, transaction.TypeLoan, got.Transaction.Type)
	assert.Equal(t, got.Loan.ID, got.Transaction.Reference.UUID)

	assert.True(t, dec("50").Equal(got.Pool.Available))
	assert.True(t, dec("57.5").Equal(got.Pool.Reserved))
	assert.True(t, dec("107.5").Equal(got.Pool.Total))
	assert.True(t, got.Pool.Balanced())

	loans, err := f.app.Loans.ListMyLoans(ctx, user)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, got.Loan.ID, loans[0].ID)
}

func TestApply_KeepsPoolInWholeCents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)
	user := uuid.New()
	f.store.SetScore(user, 350)

	got, err := f.app.Loans.Apply(ctx, user, dec("11.11"), 1)
	require.NoError(t, err)
	assert.Equal(t, "1.67", got.Terms.Interest.String())
	assert.Equal(t, "12.78", got.Loan.Balance.String())
	assert.True(t, got.Pool.Balanced())
	assert.True(t, dec("88.89").Equal(got.Pool.Available))
	assert.True(t, dec("12.78").Equal(got.Pool.Reserved))
	assert.True(t, dec("101.67").Equal(got.Pool.Total))

	_, err = f.app.Loans.Repay(ctx, user, got.Loan.ID, dec("0.005"))
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
	pool, err := f.app.Contributions.PoolSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, got.Pool.Total.Equal(pool.Total))
	assert.True(t, got.Pool.Reserved.Equal(pool.Reserved))
}

func TestApply_InsufficientLiquidity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)
	user := uuid.New()
	f.store.SetScore(user, 750)

	_, err := f.app.Loans.Apply(ctx, user, dec("200"), 2)
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
	assert.Equal(t, "insufficient pool liquidity. Available: $100.00, Requested: $200.00", apperr.ReasonOf(err))

	loans, err := f.app.Loans.ListMyLoans(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestApply_ConcurrentApplicationsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		funded   int
		rejected int
	)
	for i := 0; i < 10; i++ {
		user := uuid.New()
		f.store.SetScore(user, 750)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.app.Loans.Apply(ctx, user, dec("30"), 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				funded++
				return
			}
			assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
			rejected++
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, funded)
	assert.Equal(t, 7, rejected)

	pool, err := f.app.Contributions.PoolSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(pool.Available), pool.Available.String())
	assert.False(t, pool.Available.IsNegative())
	assert.True(t, pool.Balanced())
}

func TestRepay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)
	user := uuid.New()
	f.store.SetScore(user, 350)
	applied, err := f.app.Loans.Apply(ctx, user, dec("50"), 1)
	require.NoError(t, err)

	_, err = f.app.Loans.Repay(ctx, uuid.New(), applied.Loan.ID, dec("10"))
	assert.ErrorIs(t, err, loan.ErrLoanNotFound)
	_, err = f.app.Loans.Repay(ctx, user, applied.Loan.ID, dec("60"))
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))

	part, err := f.app.Loans.Repay(ctx, user, applied.Loan.ID, dec("20"))
	require.NoError(t, err)
	assert.True(t, dec("37.5").Equal(part.Loan.Balance))
	assert.Equal(t, loan.StatusActive, part.Loan.Status)
	assert.True(t, dec("70").Equal(part.Pool.Available))
	assert.True(t, part.Pool.Balanced())

	rest, err := f.app.Loans.Repay(ctx, user, applied.Loan.ID, dec("37.5"))
	require.NoError(t, err)
	assert.Equal(t, loan.StatusRepaid, rest.Loan.Status)
	assert.True(t, rest.Loan.Balance.IsZero())
	assert.True(t, rest.Pool.Reserved.IsZero())
	assert.True(t, dec("107.5").Equal(rest.Pool.Available))
	assert.True(t, rest.Pool.Balanced())

	_, err = f.app.Loans.Repay(ctx, user, applied.Loan.ID, dec("1"))
	assert.ErrorIs(t, err, loan.ErrLoanNotActive)

	txs, err := f.app.Contributions.ListTransactions(ctx, user)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, transaction.TypeRepayment, txs[0].Type)
	assert.Equal(t, transaction.TypeLoan, txs[2].Type)
}

func TestProcessOverdueLoans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)
	user := uuid.New()
	f.store.SetScore(user, 350)
	applied, err := f.app.Loans.Apply(ctx, user, dec("50"), 1)
	require.NoError(t, err)
	_, err = f.app.Loans.Repay(ctx, user, applied.Loan.ID, dec("7.5"))
	require.NoError(t, err)

	n, err := f.app.Loans.ProcessOverdueLoans(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(32 * 24 * time.Hour)
	n, err = f.app.Loans.ProcessOverdueLoans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loans, err := f.app.Loans.ListMyLoans(ctx, user)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, loan.StatusDefaulted, loans[0].Status)

	pool, err := f.app.Contributions.PoolSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, pool.Reserved.IsZero())
	assert.True(t, dec("57.5").Equal(pool.Total), pool.Total.String())
	assert.True(t, pool.Balanced())

	events := f.notifier.Events(notification.EventLoanDefaulted)
	require.Len(t, events, 1)
	assert.True(t, dec("50").Equal(events[0].Amount))

	n, err = f.app.Loans.ProcessOverdueLoans(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreditHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _, started := f.startCircle(t, 4)
	user := started.Entries[0].UserID

	_, err := f.app.Contributions.RecordContribution(ctx, user, c.ContributionAmount)
	require.NoError(t, err)

	history, err := f.app.Loans.CreditHistory(ctx, user)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].ScoreBefore)
	assert.Equal(t, 5, history[0].ScoreAfter)
}
