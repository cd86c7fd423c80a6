package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
)

func TestGelToTetri(t *testing.T) {
	tetri, err := GelToTetri(decimal.RequireFromString("25.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(2500), tetri)

	tetri, err = GelToTetri(decimal.RequireFromString("0.50"))
	require.NoError(t, err)
	assert.Equal(t, int64(50), tetri)

	_, err = GelToTetri(decimal.RequireFromString("1.005"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestTetriToGel(t *testing.T) {
	assert.True(t, TetriToGel(2500).Equal(decimal.RequireFromString("25")))
	assert.Equal(t, "0.50 GEL", FormatGel(TetriToGel(50)))
}

func TestValidateChargeAmount(t *testing.T) {
	tetri, err := ValidateChargeAmount(decimal.RequireFromString("25.00"), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), tetri)

	_, err = ValidateChargeAmount(decimal.RequireFromString("0.49"), 0, 0)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeBusinessRule, pkgerrors.As(err).Code())

	_, err = ValidateChargeAmount(decimal.RequireFromString("1000000.01"), 0, 0)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeBusinessRule, pkgerrors.As(err).Code())

	// Configured bounds override the defaults.
	_, err = ValidateChargeAmount(decimal.RequireFromString("25.00"), 5000, 10000)
	require.Error(t, err)
}
