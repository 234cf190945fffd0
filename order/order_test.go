package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := New("sleeve-1", "", Buy, decimal.NewFromInt(1), testDay)
	assert.ErrorIs(t, err, ErrInstrumentUnset)

	_, err = New("sleeve-1", "AAA", "SIDEWAYS", decimal.NewFromInt(1), testDay)
	assert.ErrorIs(t, err, ErrInvalidSide)

	_, err = New("sleeve-1", "AAA", Buy, decimal.Zero, testDay)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	o, err := New("sleeve-1", "AAA", Buy, decimal.NewFromInt(10), testDay)
	require.NoError(t, err)
	assert.Equal(t, Pending, o.Status)
	assert.True(t, o.Remaining.Equal(o.Quantity))
	assert.True(t, o.IsOpen())
	assert.False(t, o.ID.IsNil())
}

func TestNewDeterministicID(t *testing.T) {
	t.Parallel()
	a, err := New("sleeve-1", "AAA", Buy, decimal.NewFromInt(10), testDay)
	require.NoError(t, err)
	b, err := New("sleeve-1", "AAA", Buy, decimal.NewFromInt(10), testDay)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	c, err := New("sleeve-1", "AAA", Buy, decimal.NewFromInt(10), testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestSideSign(t *testing.T) {
	t.Parallel()
	assert.True(t, Buy.Sign().Equal(decimal.NewFromInt(1)))
	assert.True(t, Sell.Sign().Equal(decimal.NewFromInt(-1)))
}

func TestAppendReason(t *testing.T) {
	t.Parallel()
	o := &Order{}
	o.AppendReason("clipped to participation cap")
	o.AppendReason("remainder cancelled at end of day")
	assert.Equal(t, "clipped to participation cap. remainder cancelled at end of day", o.Reason)
}

func TestFillAccessors(t *testing.T) {
	t.Parallel()
	f := &Fill{
		Side:     Sell,
		Quantity: decimal.NewFromInt(5),
		Price:    decimal.NewFromInt(20),
	}
	assert.True(t, f.SignedQuantity().Equal(decimal.NewFromInt(-5)))
	assert.True(t, f.Notional().Equal(decimal.NewFromInt(100)))
}
