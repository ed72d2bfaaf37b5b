package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidOp is returned when a journal line cannot be decoded.
var ErrInvalidOp = errors.New("invalid journal op")

// Decode parses an Op from one journal line.
func Decode(data []byte) (*Op, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrInvalidOp)
	}
	var op Op
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOp, err)
	}
	if op.Action == "" {
		return nil, fmt.Errorf("%w: missing action field", ErrInvalidOp)
	}
	return &op, nil
}

// DecodePayload unmarshals op.Payload into dst.
func DecodePayload(op *Op, dst interface{}) error {
	if len(op.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(op.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidOp, op.Action, err)
	}
	return nil
}

// Encode serialises an Op to one JSON line without the trailing newline.
func Encode(op *Op) ([]byte, error) {
	return json.Marshal(op)
}

// MakeOp creates and encodes an Op.
func MakeOp(kind ActionKind, pool string, time uint64, caller common.Address, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	op := &Op{Action: kind, Pool: pool, Time: time, Payload: raw}
	if caller != (common.Address{}) {
		op.Caller = caller.Hex()
	}
	return Encode(op)
}

// ParseAddress parses a hex address. The empty string is the zero address.
func ParseAddress(value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", ErrInvalidOp, value)
	}
	return common.HexToAddress(value), nil
}

// ParseAmount parses a base-10 integer amount. Sign checks are left to the
// ledger so that rejections carry the ledger's error kinds.
func ParseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrInvalidOp, value)
	}
	return amount, nil
}
