package codec

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/soldrip/backend/src/models"
)

func TestEncodeStateLayout(t *testing.T) {
	state := &models.ProtocolState{
		Mint:                 solana.NewWallet().PublicKey(),
		DividendPool:         solana.NewWallet().PublicKey(),
		LPPool:               solana.NewWallet().PublicKey(),
		BuybackEscrow:        solana.NewWallet().PublicKey(),
		TotalSupply:          1_000_000_000,
		TotalDistributed:     21_560_000,
		LastDistributionTime: 1_700_000_000,
		PriceFluctuationBps:  1_501,
		GuardActive:          true,
		GuardActivatedAt:     1_700_000_600,
		Revision:             7,
		Authority:            solana.NewWallet().PublicKey(),
	}

	data, err := EncodeState(state)
	require.NoError(t, err)
	require.Len(t, data, StateSize)

	assert.Equal(t, state.Mint[:], data[:32])
	assert.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(data[128:136]))
	assert.Equal(t, uint16(1_501), binary.LittleEndian.Uint16(data[152:154]))
	assert.Equal(t, byte(1), data[154])

	decoded, err := DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}

func TestDecodeStateRejectsWrongLength(t *testing.T) {
	_, err := DecodeState(make([]byte, StateSize-1))
	assert.ErrorIs(t, err, ErrCorruptState)
}
