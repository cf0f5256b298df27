package chainlink

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"collend/native/oracle"
)

// Selectors for the aggregator read surface, derived from the canonical
// signatures.
var (
	latestRoundDataID = gethcrypto.Keccak256([]byte("latestRoundData()"))[:4]
	getRoundDataID    = gethcrypto.Keccak256([]byte("getRoundData(uint80)"))[:4]
	decimalsID        = gethcrypto.Keccak256([]byte("decimals()"))[:4]
)

const wordSize = 32

// ContractCaller is the subset of the Ethereum RPC the feed client uses.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial initialises an Ethereum RPC client for the provided endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chainlink: rpc endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// Feed reads a round-based aggregator contract. It implements
// oracle.RoundFeed.
type Feed struct {
	caller ContractCaller
	addr   common.Address
}

func NewFeed(caller ContractCaller, addr common.Address) *Feed {
	return &Feed{caller: caller, addr: addr}
}

func (f *Feed) LatestRoundData(ctx context.Context) (oracle.RoundData, error) {
	return f.roundData(ctx, append([]byte(nil), latestRoundDataID...))
}

func (f *Feed) RoundData(ctx context.Context, roundID *big.Int) (oracle.RoundData, error) {
	if roundID == nil || roundID.Sign() < 0 {
		return oracle.RoundData{}, fmt.Errorf("chainlink: round id required")
	}
	data := append([]byte(nil), getRoundDataID...)
	data = append(data, leftPad(roundID.Bytes())...)
	return f.roundData(ctx, data)
}

func (f *Feed) Decimals(ctx context.Context) (uint8, error) {
	out, err := f.call(ctx, append([]byte(nil), decimalsID...))
	if err != nil {
		return 0, err
	}
	if len(out) < wordSize {
		return 0, fmt.Errorf("chainlink: short decimals response (%d bytes)", len(out))
	}
	return uint8(new(big.Int).SetBytes(out[:wordSize]).Uint64()), nil
}

// roundData decodes the aggregator's five-word response:
// (roundId, answer, startedAt, updatedAt, answeredInRound).
func (f *Feed) roundData(ctx context.Context, calldata []byte) (oracle.RoundData, error) {
	out, err := f.call(ctx, calldata)
	if err != nil {
		return oracle.RoundData{}, err
	}
	if len(out) < 5*wordSize {
		return oracle.RoundData{}, fmt.Errorf("chainlink: short round response (%d bytes)", len(out))
	}
	updatedAt := new(big.Int).SetBytes(out[3*wordSize : 4*wordSize])
	return oracle.RoundData{
		RoundID:         new(big.Int).SetBytes(out[:wordSize]),
		Answer:          parseInt256(out[wordSize : 2*wordSize]),
		UpdatedAt:       time.Unix(updatedAt.Int64(), 0),
		AnsweredInRound: new(big.Int).SetBytes(out[4*wordSize : 5*wordSize]),
	}, nil
}

func (f *Feed) call(ctx context.Context, calldata []byte) ([]byte, error) {
	if f == nil || f.caller == nil {
		return nil, fmt.Errorf("chainlink: feed client not initialised")
	}
	out, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &f.addr, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("chainlink: call %s: %w", f.addr.Hex(), err)
	}
	return out, nil
}

// parseInt256 decodes a two's-complement 256-bit word.
func parseInt256(word []byte) *big.Int {
	value := new(big.Int).SetBytes(word)
	if len(word) == wordSize && word[0]&0x80 != 0 {
		max := new(big.Int).Lsh(big.NewInt(1), 256)
		value.Sub(value, max)
	}
	return value
}

func leftPad(b []byte) []byte {
	if len(b) >= wordSize {
		return b[len(b)-wordSize:]
	}
	padded := make([]byte, wordSize)
	copy(padded[wordSize-len(b):], b)
	return padded
}
