package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewaybot/internal/config"
)

func TestBuildInvoiceAndParsePayloadRoundTrip(t *testing.T) {
	plan := ResolvedPlan{Key: "w", Label: "Weekly", Stars: 75, Duration: 1, Unit: config.UnitWeeks}
	inv := BuildInvoice(plan, 555)

	assert.Equal(t, "w_555", inv.Payload)
	assert.Equal(t, 75, inv.Amount)

	key, userID, err := ParsePayload(inv.Payload)
	require.NoError(t, err)
	assert.Equal(t, "w", key)
	assert.Equal(t, int64(555), userID)
}

func TestParsePayloadRejectsMalformed(t *testing.T) {
	_, _, err := ParsePayload("nounderscore")
	require.Error(t, err)

	_, _, err = ParsePayload("w_notanumber")
	require.Error(t, err)
}

func TestParsePayloadSplitsOnLastUnderscore(t *testing.T) {
	// keys are short letters today ("d"/"w"/"m") but the split must use
	// the LAST underscore in case a future key itself contains one.
	key, userID, err := ParsePayload("custom_plan_42")
	require.NoError(t, err)
	assert.Equal(t, "custom_plan", key)
	assert.Equal(t, int64(42), userID)
}
