package univ3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"collend/native/oracle"
)

var (
	observeID  = gethcrypto.Keccak256([]byte("observe(uint32[])"))[:4]
	token0ID   = gethcrypto.Keccak256([]byte("token0()"))[:4]
	token1ID   = gethcrypto.Keccak256([]byte("token1()"))[:4]
	decimalsID = gethcrypto.Keccak256([]byte("decimals()"))[:4]
)

const wordSize = 32

// ContractCaller is the subset of the Ethereum RPC the pool client uses.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Pool reads a Uniswap-V3-style pool contract. It implements
// oracle.TwapPool.
type Pool struct {
	caller ContractCaller
	addr   common.Address
}

func NewPool(caller ContractCaller, addr common.Address) *Pool {
	return &Pool{caller: caller, addr: addr}
}

// Observe requests the pool's cumulative tick values at the provided sample
// ages. The secondsPerLiquidity half of the response is not consumed.
func (p *Pool) Observe(ctx context.Context, secondsAgos []uint32) ([]*big.Int, error) {
	if len(secondsAgos) == 0 {
		return nil, fmt.Errorf("univ3: at least one sample age required")
	}

	calldata := append([]byte(nil), observeID...)
	calldata = append(calldata, padUint64(wordSize)...) // offset of the dynamic array
	calldata = append(calldata, padUint64(uint64(len(secondsAgos)))...)
	for _, age := range secondsAgos {
		calldata = append(calldata, padUint64(uint64(age))...)
	}

	out, err := p.call(ctx, calldata)
	if err != nil {
		return nil, err
	}

	// Response head carries the offsets of the two dynamic arrays; only the
	// tick cumulatives are decoded.
	if len(out) < 2*wordSize {
		return nil, fmt.Errorf("univ3: short observe response (%d bytes)", len(out))
	}
	offset := new(big.Int).SetBytes(out[:wordSize]).Uint64()
	if uint64(len(out)) < offset+wordSize {
		return nil, fmt.Errorf("univ3: observe response truncated at tick array header")
	}
	count := new(big.Int).SetBytes(out[offset : offset+wordSize]).Uint64()
	if count != uint64(len(secondsAgos)) {
		return nil, fmt.Errorf("univ3: expected %d tick cumulatives, got %d", len(secondsAgos), count)
	}
	if uint64(len(out)) < offset+wordSize+count*wordSize {
		return nil, fmt.Errorf("univ3: observe response truncated at tick array body")
	}

	cumulatives := make([]*big.Int, 0, count)
	for i := uint64(0); i < count; i++ {
		start := offset + wordSize + i*wordSize
		cumulatives = append(cumulatives, parseInt256(out[start:start+wordSize]))
	}
	return cumulatives, nil
}

// Tokens resolves both pool legs and their ERC-20 decimal precision.
func (p *Pool) Tokens(ctx context.Context) (oracle.PoolTokens, error) {
	token0, err := p.callAddress(ctx, token0ID)
	if err != nil {
		return oracle.PoolTokens{}, fmt.Errorf("univ3: token0: %w", err)
	}
	token1, err := p.callAddress(ctx, token1ID)
	if err != nil {
		return oracle.PoolTokens{}, fmt.Errorf("univ3: token1: %w", err)
	}
	decimals0, err := p.tokenDecimals(ctx, token0)
	if err != nil {
		return oracle.PoolTokens{}, err
	}
	decimals1, err := p.tokenDecimals(ctx, token1)
	if err != nil {
		return oracle.PoolTokens{}, err
	}
	return oracle.PoolTokens{
		Token0:    token0,
		Token1:    token1,
		Decimals0: decimals0,
		Decimals1: decimals1,
	}, nil
}

// TokenLegs reports only the two token addresses, for pool-membership checks.
func (p *Pool) TokenLegs(ctx context.Context) (common.Address, common.Address, error) {
	token0, err := p.callAddress(ctx, token0ID)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("univ3: token0: %w", err)
	}
	token1, err := p.callAddress(ctx, token1ID)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("univ3: token1: %w", err)
	}
	return token0, token1, nil
}

func (p *Pool) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := p.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: append([]byte(nil), decimalsID...),
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("univ3: decimals of %s: %w", token.Hex(), err)
	}
	if len(out) < wordSize {
		return 0, fmt.Errorf("univ3: short decimals response for %s", token.Hex())
	}
	return uint8(new(big.Int).SetBytes(out[:wordSize]).Uint64()), nil
}

func (p *Pool) callAddress(ctx context.Context, selector []byte) (common.Address, error) {
	out, err := p.call(ctx, append([]byte(nil), selector...))
	if err != nil {
		return common.Address{}, err
	}
	if len(out) < wordSize {
		return common.Address{}, fmt.Errorf("short address response (%d bytes)", len(out))
	}
	return common.BytesToAddress(out[wordSize-common.AddressLength : wordSize]), nil
}

func (p *Pool) call(ctx context.Context, calldata []byte) ([]byte, error) {
	if p == nil || p.caller == nil {
		return nil, fmt.Errorf("univ3: pool client not initialised")
	}
	out, err := p.caller.CallContract(ctx, ethereum.CallMsg{To: &p.addr, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("univ3: call %s: %w", p.addr.Hex(), err)
	}
	return out, nil
}

func parseInt256(word []byte) *big.Int {
	value := new(big.Int).SetBytes(word)
	if len(word) == wordSize && word[0]&0x80 != 0 {
		max := new(big.Int).Lsh(big.NewInt(1), 256)
		value.Sub(value, max)
	}
	return value
}

func padUint64(v uint64) []byte {
	word := make([]byte, wordSize)
	new(big.Int).SetUint64(v).FillBytes(word)
	return word
}
