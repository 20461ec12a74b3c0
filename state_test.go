package ledgergate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lg "github.com/ineyio/ledgergate"
)

func TestGatewayConfigRoundTrip(t *testing.T) {
	cfg := lg.GatewayConfig{
		Initialized:   true,
		Admin:         addr(1),
		Treasury:      addr(2),
		BackendSigner: addr(3),
		Rules: lg.Rules{
			BasePrice:       1_000,
			MaxSurgeBps:     12_345,
			PeriodLimit:     100,
			PeriodSeconds:   -60,
			BucketCapacity:  10,
			RefillPerSecond: 2,
		},
		Nonce: 254,
	}

	data := cfg.Marshal()
	require.Len(t, data, lg.GatewayConfigLen)

	decoded, err := lg.UnmarshalGatewayConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}

func TestConsumerAccountRoundTrip(t *testing.T) {
	acct := lg.ConsumerAccount{
		Initialized: true,
		Gateway:     addr(4),
		Owner:       addr(5),
		APIKeyID:    7,
		APIKeyHash:  lg.HashAPIKey("secret"),
		Runtime: lg.Runtime{
			BucketTokens:       9,
			BucketLastRefillTS: 12_345,
			QuotaRemaining:     42,
			QuotaPeriodStartTS: -1,
			TotalCalls:         3,
			TotalSpent:         3_006,
		},
		Nonce: 255,
	}

	data := acct.Marshal()
	require.Len(t, data, lg.ConsumerAccountLen)

	decoded, err := lg.UnmarshalConsumerAccount(data)
	require.NoError(t, err)
	assert.Equal(t, acct, decoded)
}

func TestUnmarshalRejectsWrongSize(t *testing.T) {
	_, err := lg.UnmarshalGatewayConfig(make([]byte, lg.GatewayConfigLen-1))
	assert.ErrorIs(t, err, lg.ErrInvalidAccount)

	_, err = lg.UnmarshalGatewayConfig(make([]byte, lg.ConsumerAccountLen))
	assert.ErrorIs(t, err, lg.ErrInvalidAccount)

	_, err = lg.UnmarshalConsumerAccount(make([]byte, lg.ConsumerAccountLen+1))
	assert.ErrorIs(t, err, lg.ErrInvalidAccount)
}

func TestZeroRecordDecodesAsUninitialized(t *testing.T) {
	cfg, err := lg.UnmarshalGatewayConfig(make([]byte, lg.GatewayConfigLen))
	require.NoError(t, err)
	assert.False(t, cfg.Initialized)

	acct, err := lg.UnmarshalConsumerAccount(make([]byte, lg.ConsumerAccountLen))
	require.NoError(t, err)
	assert.False(t, acct.Initialized)
}
