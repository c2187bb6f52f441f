// Package codec reads and writes the fixed-layout binary form of the protocol state.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/username/soldrip/backend/src/models"
)

// StateSize is the encoded length of models.ProtocolState.
const StateSize = 4*32 + 8 + 8 + 8 + 2 + 1 + 8 + 8 + 32

var ErrCorruptState = errors.New("corrupt protocol state record")

// EncodeState serializes the state in borsh layout.
func EncodeState(state *models.ProtocolState) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(state); err != nil {
		return nil, fmt.Errorf("encode protocol state: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeState parses a record produced by EncodeState.
func DecodeState(data []byte) (*models.ProtocolState, error) {
	if len(data) != StateSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrCorruptState, len(data), StateSize)
	}
	var state models.ProtocolState
	if err := bin.NewBorshDecoder(data).Decode(&state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return &state, nil
}
