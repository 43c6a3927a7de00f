package ledger

import (
	"math/rand/v2"
	"testing"

	"hive_fund/internal/domain/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPool_CreditAndReserve(t *testing.T) {
	p := Pool{}.Credit(dec("100"))
	require.True(t, p.Balanced())

	p, err := p.Reserve(dec("50"), dec("57.5"))
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(p.Available))
	assert.True(t, dec("57.5").Equal(p.Reserved))
	assert.True(t, dec("107.5").Equal(p.Total))
	assert.True(t, p.Balanced())
}

func TestPool_ReserveRejectsOverdraw(t *testing.T) {
	p := Pool{}.Credit(dec("40"))

	next, err := p.Reserve(dec("50"), dec("57.5"))
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "Available: $40.00, Requested: $50.00")
	assert.Equal(t, p, next)
}

func TestPool_ReleaseAndWriteOff(t *testing.T) {
	p := Pool{}.Credit(dec("200"))
	p, err := p.Reserve(dec("100"), dec("110"))
	require.NoError(t, err)

	p, err = p.Release(dec("60"))
	require.NoError(t, err)
	assert.True(t, dec("160").Equal(p.Available))
	assert.True(t, dec("50").Equal(p.Reserved))
	assert.True(t, p.Balanced())

	p, err = p.WriteOff(dec("50"))
	require.NoError(t, err)
	assert.True(t, p.Reserved.IsZero())
	assert.True(t, dec("160").Equal(p.Total))
	assert.True(t, p.Balanced())

	_, err = p.Release(dec("1"))
	assert.ErrorIs(t, err, ErrPoolUnderflow)
	_, err = p.WriteOff(dec("1"))
	assert.ErrorIs(t, err, ErrPoolUnderflow)
}

func TestPool_InvariantUnderRandomOperations(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	p := Pool{}
	for i := 0; i < 5000; i++ {
		amount := decimal.NewFromInt(int64(r.IntN(200) + 1))
		var err error
		switch r.IntN(4) {
		case 0:
			p = p.Credit(amount)
		case 1:
			p, err = p.Reserve(amount, amount.Mul(dec("1.15")).Round(2))
		case 2:
			p, err = p.Release(decimal.Min(amount, p.Reserved))
		case 3:
			p, err = p.WriteOff(decimal.Min(amount, p.Reserved))
		}
		if err != nil {
			require.Equal(t, apperr.BadRequest, apperr.KindOf(err), "only liquidity rejections are expected")
		}
		require.True(t, p.Balanced(), "step %d: %+v", i, p)
	}
}
