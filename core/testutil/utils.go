// Package testutil carries the fixtures shared by the SDK test suites: a
// recording fake JSON-RPC endpoint that stands in for the eth node or the
// bundler, plus the canonical test key and wallet configuration.
package testutil

import (
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/require"

	"github.com/IncentivNetwork/ui-sdk/core/config"
)

// ControllerKeyHex is hardhat account #0, test-only.
const ControllerKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// ControllerKey parses ControllerKeyHex.
func ControllerKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA(ControllerKeyHex)
	require.NoError(t, err)
	return key
}

// TestWalletConfig is a minimal parsed configuration pointing at the
// canonical v0.6 entrypoint and factory.
func TestWalletConfig() *config.SmartWalletConfig {
	return &config.SmartWalletConfig{
		FactoryAddress:    common.HexToAddress(config.DefaultFactoryAddressHex),
		EntrypointAddress: common.HexToAddress(config.DefaultEntrypointAddressHex),
	}
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Handler decides a FakeRPC's response for one request. n is the 1-based
// call number for that method.
type Handler func(method string, params []json.RawMessage, n int) (any, *RPCError)

// FakeRPC is a single-endpoint JSON-RPC server that records every call.
// When the handler leaves an eth_chainId request unanswered it defaults to
// chain 1 so clients that probe the chain id at construction come up.
type FakeRPC struct {
	t       *testing.T
	server  *httptest.Server
	handler Handler

	mu     sync.Mutex
	calls  map[string]int
	params map[string][]json.RawMessage
}

func NewFakeRPC(t *testing.T, handler Handler) *FakeRPC {
	f := &FakeRPC{
		t:       t,
		handler: handler,
		calls:   make(map[string]int),
		params:  make(map[string][]json.RawMessage),
	}
	f.server = httptest.NewServer(f)
	t.Cleanup(f.server.Close)
	return f
}

func (f *FakeRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls[req.Method]++
	n := f.calls[req.Method]
	f.params[req.Method] = req.Params
	f.mu.Unlock()

	var result any
	var rpcErr *RPCError
	if f.handler != nil {
		result, rpcErr = f.handler(req.Method, req.Params, n)
	}
	if result == nil && rpcErr == nil && req.Method == "eth_chainId" {
		result = "0x1"
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		f.t.Errorf("encode response: %v", err)
	}
}

// URL is the server endpoint to dial.
func (f *FakeRPC) URL() string {
	return f.server.URL
}

// Dial connects an ethclient to the fake endpoint.
func (f *FakeRPC) Dial(t *testing.T) *ethclient.Client {
	t.Helper()
	client, err := ethclient.Dial(f.server.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

// CallCount reports how often method was requested.
func (f *FakeRPC) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// LastParams returns the params of the most recent request for method.
func (f *FakeRPC) LastParams(method string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[method]
}

// EthCallData pulls the calldata out of an eth_call parameter object,
// accepting both the input and the legacy data key.
func EthCallData(t *testing.T, params []json.RawMessage) []byte {
	t.Helper()
	var call struct {
		To    string `json:"to"`
		Input string `json:"input"`
		Data  string `json:"data"`
	}
	require.NotEmpty(t, params)
	require.NoError(t, json.Unmarshal(params[0], &call))
	raw := call.Input
	if raw == "" {
		raw = call.Data
	}
	require.NotEmpty(t, raw)
	return hexutil.MustDecode(raw)
}
