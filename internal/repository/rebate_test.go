package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTiers(t *testing.T) {
	t.Run("numbers and strings", func(t *testing.T) {
		raw := []byte(`[{"valid_bet_more_than":1,"rebate_percentage":"1.5","rebate_amount":0},
			{"valid_bet_more_than":"1000","rebate_percentage":2,"rebate_amount":"25.00"}]`)
		tiers, err := decodeTiers(raw)
		require.NoError(t, err)
		require.Len(t, tiers, 2)
		assert.Equal(t, "1", tiers[0].ValidBetMoreThan.String())
		assert.Equal(t, "1.5", tiers[0].RebatePercentage.String())
		assert.Equal(t, "25", tiers[1].RebateAmount.String())
	})

	t.Run("empty column", func(t *testing.T) {
		tiers, err := decodeTiers(nil)
		require.NoError(t, err)
		assert.Empty(t, tiers)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := decodeTiers([]byte(`{"not":"a list"}`))
		assert.Error(t, err)
	})
}

func TestDecodeProviderSettings(t *testing.T) {
	raw := []byte(`{"pragmatic":{"formula":"valid_bet*rate","valid_bet_amount":100,
		"rebate_percentage":"0.8","max_payout_per_provider":"5000"}}`)
	settings, err := decodeProviderSettings(raw)
	require.NoError(t, err)
	require.Contains(t, settings, "pragmatic")
	assert.Equal(t, "valid_bet*rate", settings["pragmatic"].Formula)
	assert.Equal(t, "5000", settings["pragmatic"].MaxPayoutPerProvider.String())

	settings, err = decodeProviderSettings(nil)
	require.NoError(t, err)
	assert.Nil(t, settings)
}
