package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"RateSentinel/internal/model"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
)

// aggregatorABI is the read side of the Chainlink AggregatorV3Interface.
const aggregatorABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"name":"roundId","type":"uint80"},
		{"name":"answer","type":"int256"},
		{"name":"startedAt","type":"uint256"},
		{"name":"updatedAt","type":"uint256"},
		{"name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

var aggregator = mustParseABI(aggregatorABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse aggregator abi: %v", err))
	}
	return parsed
}

// contractCaller is the part of ethclient.Client the oracle needs.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// OracleProvider reads on-chain price oracles exposing the aggregator
// interface (decimals, latestRoundData) through an EVM JSON-RPC endpoint.
// The feed reference is the oracle contract address; the token's network
// selects the endpoint.
type OracleProvider struct {
	RPC      map[string]string
	proxyURL string

	mu       sync.Mutex
	clients  map[string]*ethclient.Client
	decimals sync.Map // network/address -> int32
}

// NewOracleProvider creates an oracle provider for the given network endpoints.
func NewOracleProvider(rpcURLs map[string]string, proxyURL string) *OracleProvider {
	normalized := make(map[string]string, len(rpcURLs))
	for network, u := range rpcURLs {
		normalized[strings.ToLower(network)] = u
	}
	return &OracleProvider{
		RPC:      normalized,
		proxyURL: proxyURL,
		clients:  make(map[string]*ethclient.Client),
	}
}

func (p *OracleProvider) Name() string { return "oracle" }

func (p *OracleProvider) Fetch(ctx context.Context, address string, token model.TokenFeedConfig) (Reading, error) {
	network := strings.ToLower(token.Network)
	if _, ok := p.RPC[network]; !ok {
		return Reading{}, fmt.Errorf("oracle: no rpc endpoint for network %q", token.Network)
	}
	if !common.IsHexAddress(address) {
		return Reading{}, fmt.Errorf("oracle: invalid contract address %q", address)
	}
	client, err := p.client(ctx, network)
	if err != nil {
		return Reading{}, err
	}
	contract := common.HexToAddress(address)

	dec, err := p.feedDecimals(ctx, client, network, contract)
	if err != nil {
		return Reading{}, err
	}

	out, err := p.call(ctx, client, contract, "latestRoundData")
	if err != nil {
		return Reading{}, fmt.Errorf("oracle latestRoundData %s: %w", address, err)
	}
	answer, ok := out[1].(*big.Int)
	if !ok {
		return Reading{}, fmt.Errorf("oracle latestRoundData %s: %w", address, ErrNoValue)
	}
	if answer.Sign() <= 0 {
		return Reading{}, fmt.Errorf("oracle %s: %w: %s", address, ErrNonPositive, answer.String())
	}
	value := decimal.NewFromBigInt(answer, -dec)

	r := Reading{Value: value.InexactFloat64()}
	if updated, ok := out[3].(*big.Int); ok && updated.IsInt64() && updated.Int64() > 0 {
		r.ObservedAt = time.Unix(updated.Int64(), 0).UTC()
	}
	return r, nil
}

// Close releases the RPC connections.
func (p *OracleProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for network, c := range p.clients {
		c.Close()
		delete(p.clients, network)
	}
}

func (p *OracleProvider) client(ctx context.Context, network string) (*ethclient.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[network]; ok {
		return c, nil
	}
	rc, err := rpc.DialOptions(ctx, p.RPC[network], rpc.WithHTTPClient(newHTTPClient(p.proxyURL, 30*time.Second)))
	if err != nil {
		return nil, fmt.Errorf("oracle: dial %s: %w", network, err)
	}
	c := ethclient.NewClient(rc)
	p.clients[network] = c
	return c, nil
}

func (p *OracleProvider) feedDecimals(ctx context.Context, caller contractCaller, network string, contract common.Address) (int32, error) {
	key := network + "/" + strings.ToLower(contract.Hex())
	if v, ok := p.decimals.Load(key); ok {
		return v.(int32), nil
	}
	out, err := p.call(ctx, caller, contract, "decimals")
	if err != nil {
		return 0, fmt.Errorf("oracle decimals %s: %w", contract.Hex(), err)
	}
	d, ok := out[0].(uint8)
	if !ok || d > 36 {
		return 0, fmt.Errorf("oracle decimals %s: implausible value %v", contract.Hex(), out[0])
	}
	dec := int32(d)
	p.decimals.Store(key, dec)
	return dec, nil
}

func (p *OracleProvider) call(ctx context.Context, caller contractCaller, contract common.Address, method string) ([]interface{}, error) {
	data, err := aggregator.Pack(method)
	if err != nil {
		return nil, err
	}
	raw, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		// Calls to an address without code return no data.
		return nil, errors.New("empty result (missing contract?)")
	}
	out, err := aggregator.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoValue, err)
	}
	return out, nil
}
