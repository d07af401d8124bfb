package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"bot-ledger-go/internal/config"
	"bot-ledger-go/internal/ledger"
	"bot-ledger-go/internal/ledger/ledgertest"
	"bot-ledger-go/internal/models"
	"bot-ledger-go/internal/trader"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testNode struct {
	server    *httptest.Server
	store     *ledger.Store
	processor *trader.Processor
}

func setupNode(t *testing.T, airdrop config.Airdrop) *testNode {
	store := ledgertest.NewStore(t)
	reg := prometheus.NewRegistry()
	processor := trader.NewProcessor(zap.NewNop(), store, trader.Options{
		ProgramID:        ledger.Identity{0xB0},
		EnforceRiskBound: true,
	}, trader.NewMetrics(reg))

	handler := NewHandler(zap.NewNop(), processor, store, airdrop)
	server := httptest.NewServer(Routes(handler, reg))
	t.Cleanup(server.Close)

	return &testNode{server: server, store: store, processor: processor}
}

func newSigner(t *testing.T) (ledger.Identity, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := ledger.IdentityFromPublicKey(pub)
	require.NoError(t, err)
	return id, priv
}

func (n *testNode) submit(t *testing.T, signer ledger.Identity, key ed25519.PrivateKey, ix trader.Instruction, market ledger.Identity) *http.Response {
	tx, err := trader.NewTransaction(signer, n.processor.BotAddress(signer), market, ix)
	require.NoError(t, err)
	require.NoError(t, tx.Sign(key))

	body, err := json.Marshal(tx)
	require.NoError(t, err)
	resp, err := http.Post(n.server.URL+"/api/transactions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSubmitTransactionHandler(t *testing.T) {
	n := setupNode(t, config.Airdrop{})
	signer, key := newSigner(t)
	market := ledger.Identity{0x03}
	require.NoError(t, n.store.Airdrop(context.Background(), signer, 1000))

	resp := n.submit(t, signer, key, trader.InitializeBot{RiskPercentage: 25, StrategyType: 4}, ledger.SystemIdentity)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[ReceiptView](t, resp)
	assert.Equal(t, trader.InstructionInitializeBot, created.Instruction)
	assert.Equal(t, signer, created.Bot.Owner)
	assert.Equal(t, ledger.StateInactive, created.Bot.State)

	resp = n.submit(t, signer, key, trader.ExecuteTrade{Amount: 1000, IsBuy: true}, market)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	rejected := decode[ErrorResponse](t, resp)
	require.NotNil(t, rejected.Code)
	assert.Equal(t, uint32(6001), *rejected.Code)
	assert.Equal(t, "NotActive", rejected.Name)

	resp = n.submit(t, signer, key, trader.ActivateBot{}, ledger.SystemIdentity)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = n.submit(t, signer, key, trader.ActivateBot{}, ledger.SystemIdentity)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "AlreadyActive", decode[ErrorResponse](t, resp).Name)

	resp = n.submit(t, signer, key, trader.ExecuteTrade{Amount: 1000, IsBuy: true}, market)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	traded := decode[ReceiptView](t, resp)
	assert.Equal(t, uint64(250), traded.TradeAmount)
	assert.True(t, traded.Transferred)
	assert.Equal(t, uint64(1), traded.Bot.TotalTrades)

	resp = n.submit(t, signer, key, trader.ExecuteTrade{Amount: 4000, IsBuy: true}, market)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "InsufficientFunds", decode[ErrorResponse](t, resp).Name)
}

func TestSubmitTransactionHandler_Refusals(t *testing.T) {
	n := setupNode(t, config.Airdrop{})

	t.Run("MalformedBody", func(t *testing.T) {
		resp, err := http.Post(n.server.URL+"/api/transactions", "application/json", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("BadSignature", func(t *testing.T) {
		signer, _ := newSigner(t)
		_, otherKey := newSigner(t)
		tx, err := trader.NewTransaction(signer, n.processor.BotAddress(signer), ledger.SystemIdentity, trader.ActivateBot{})
		require.NoError(t, err)
		tx.Signature = ed25519.Sign(otherKey, tx.Message())

		body, _ := json.Marshal(tx)
		resp, err := http.Post(n.server.URL+"/api/transactions", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("MissingBot", func(t *testing.T) {
		signer, key := newSigner(t)
		resp := n.submit(t, signer, key, trader.ActivateBot{}, ledger.SystemIdentity)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("RiskOutOfRange", func(t *testing.T) {
		signer, key := newSigner(t)
		resp := n.submit(t, signer, key, trader.InitializeBot{RiskPercentage: 150}, ledger.SystemIdentity)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestBotHandlers(t *testing.T) {
	n := setupNode(t, config.Airdrop{})
	ctx := context.Background()
	owner := ledger.Identity{0x01}
	addr, _, err := n.processor.CreateBot(ctx, owner, 40, 2)
	require.NoError(t, err)

	for _, path := range []string{"/api/bots/" + addr.String(), "/api/owners/" + owner.String() + "/bot"} {
		resp, err := http.Get(n.server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		view := decode[BotView](t, resp)
		assert.Equal(t, addr, view.Address)
		assert.Equal(t, owner, view.Owner)
		assert.Equal(t, uint8(40), view.RiskPercentage)
		assert.Equal(t, uint8(2), view.StrategyType)
		assert.Equal(t, float64(0), view.WinRate)
	}

	resp, err := http.Get(n.server.URL + "/api/bots/" + ledger.Identity{0x77}.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(n.server.URL + "/api/bots/not-an-address")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAirdropAndBalanceHandlers(t *testing.T) {
	target := ledger.Identity{0x05}
	post := func(t *testing.T, n *testNode, lamports uint64) *http.Response {
		body, _ := json.Marshal(AirdropRequest{Address: target, Lamports: lamports})
		resp, err := http.Post(n.server.URL+"/api/airdrop", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("Disabled", func(t *testing.T) {
		n := setupNode(t, config.Airdrop{})
		assert.Equal(t, http.StatusNotFound, post(t, n, 1).StatusCode)
	})

	t.Run("CreditsAndReports", func(t *testing.T) {
		n := setupNode(t, config.Airdrop{Enabled: true, MaxLamports: 2 * LamportsPerSOL, RateLimit: 100, RateLimitBurst: 10})

		resp := post(t, n, 1_500_000_000)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "1.5", decode[BalanceView](t, resp).SOL.String())

		assert.Equal(t, http.StatusBadRequest, post(t, n, 3*LamportsPerSOL).StatusCode)
		assert.Equal(t, http.StatusBadRequest, post(t, n, 0).StatusCode)

		bal, err := http.Get(n.server.URL + "/api/accounts/" + target.String() + "/balance")
		require.NoError(t, err)
		defer bal.Body.Close()
		view := decode[BalanceView](t, bal)
		assert.Equal(t, uint64(1_500_000_000), view.Lamports)
	})

	t.Run("RateLimited", func(t *testing.T) {
		n := setupNode(t, config.Airdrop{Enabled: true, MaxLamports: 10, RateLimit: 0.001, RateLimitBurst: 1})
		assert.Equal(t, http.StatusOK, post(t, n, 1).StatusCode)
		assert.Equal(t, http.StatusTooManyRequests, post(t, n, 1).StatusCode)
	})
}

func TestTransactionsHandler(t *testing.T) {
	n := setupNode(t, config.Airdrop{})
	signer, key := newSigner(t)

	require.Equal(t, http.StatusOK, n.submit(t, signer, key, trader.InitializeBot{RiskPercentage: 5}, ledger.SystemIdentity).StatusCode)
	require.Equal(t, http.StatusOK, n.submit(t, signer, key, trader.ActivateBot{}, ledger.SystemIdentity).StatusCode)

	resp, err := http.Get(n.server.URL + "/api/transactions?limit=1&bot=" + n.processor.BotAddress(signer).String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[[]models.Instruction](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, trader.InstructionActivateBot, history[0].Kind)

	resp, err = http.Get(n.server.URL + "/api/transactions?limit=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitTransactionHandler_MaxAmountSell(t *testing.T) {
	n := setupNode(t, config.Airdrop{})
	signer, key := newSigner(t)
	market := ledger.Identity{0x03}

	require.Equal(t, http.StatusOK, n.submit(t, signer, key, trader.InitializeBot{RiskPercentage: 10}, ledger.SystemIdentity).StatusCode)
	require.Equal(t, http.StatusOK, n.submit(t, signer, key, trader.ActivateBot{}, ledger.SystemIdentity).StatusCode)

	resp := n.submit(t, signer, key, trader.ExecuteTrade{Amount: math.MaxUint64, IsBuy: false}, market)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	receipt := decode[ReceiptView](t, resp)
	assert.Equal(t, uint64(math.MaxUint64/10), receipt.TradeAmount)
	assert.False(t, receipt.Transferred)
	assert.Equal(t, uint64(1), receipt.Bot.TotalTrades)

	history, err := http.Get(n.server.URL + "/api/transactions?limit=1")
	require.NoError(t, err)
	defer history.Body.Close()
	entries := decode[[]models.Instruction](t, history)
	require.Len(t, entries, 1)
	assert.Equal(t, models.Uint64(math.MaxUint64), entries[0].Amount)
	assert.Equal(t, models.Uint64(math.MaxUint64/10), entries[0].TradeAmount)
}

func TestHealthAndMetrics(t *testing.T) {
	n := setupNode(t, config.Airdrop{})

	resp, err := http.Get(n.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, _, err = n.processor.CreateBot(context.Background(), ledger.Identity{1}, 5, 0)
	require.NoError(t, err)

	metrics, err := http.Get(n.server.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(metrics.Body)
	assert.Contains(t, buf.String(), `botledger_instructions_total{instruction="initialize_bot",result="ok"} 1`)
}
