package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bot-ledger-go/internal/config"
	"bot-ledger-go/internal/ledger"
	"bot-ledger-go/internal/models"
	"bot-ledger-go/internal/trader"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Handler holds dependencies for the API endpoints.
type Handler struct {
	log            *zap.Logger
	processor      *trader.Processor
	store          *ledger.Store
	airdrop        config.Airdrop
	airdropLimiter *rate.Limiter
}

// NewHandler creates a new Handler.
func NewHandler(log *zap.Logger, processor *trader.Processor, store *ledger.Store, airdrop config.Airdrop) *Handler {
	return &Handler{
		log:            log,
		processor:      processor,
		store:          store,
		airdrop:        airdrop,
		airdropLimiter: rate.NewLimiter(rate.Limit(airdrop.RateLimit), airdrop.RateLimitBurst),
	}
}

// SubmitTransactionHandler applies a signed transaction.
func (h *Handler) SubmitTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var tx trader.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "malformed transaction: "+err.Error(), nil)
		return
	}

	receipt, err := h.processor.Process(r.Context(), &tx)
	if err != nil {
		h.writeProcessError(w, err)
		return
	}

	lamports, err := h.store.Balance(r.Context(), receipt.BotAddress)
	if err != nil {
		h.log.Error("Failed to read bot balance", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read bot balance", nil)
		return
	}

	writeJSON(w, http.StatusOK, ReceiptView{
		ID:          receipt.ID,
		Instruction: receipt.Instruction,
		TradeAmount: receipt.TradeAmount,
		Transferred: receipt.Transferred,
		Bot:         NewBotView(receipt.BotAddress, receipt.Bot, lamports),
	})
}

// BotHandler returns the bot stored at the address in the path.
func (h *Handler) BotHandler(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathIdentity(w, r, "address")
	if !ok {
		return
	}
	h.writeBot(w, r, addr)
}

// OwnerBotHandler returns the bot owned by the identity in the path.
func (h *Handler) OwnerBotHandler(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathIdentity(w, r, "owner")
	if !ok {
		return
	}
	h.writeBot(w, r, h.processor.BotAddress(owner))
}

func (h *Handler) writeBot(w http.ResponseWriter, r *http.Request, addr ledger.Identity) {
	bot, err := h.store.LoadBot(r.Context(), addr)
	if err != nil {
		h.writeProcessError(w, err)
		return
	}
	lamports, err := h.store.Balance(r.Context(), addr)
	if err != nil {
		h.writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBotView(addr, bot, lamports))
}

// BalanceHandler returns the native balance of an account.
func (h *Handler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathIdentity(w, r, "address")
	if !ok {
		return
	}
	lamports, err := h.store.Balance(r.Context(), addr)
	if err != nil {
		h.writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBalanceView(addr, lamports))
}

// TransactionsHandler returns journalled instructions, most recent first.
func (h *Handler) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	var bot ledger.Identity
	if s := r.URL.Query().Get("bot"); s != "" {
		var err error
		if bot, err = ledger.ParseIdentity(s); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500", nil)
			return
		}
		limit = n
	}

	history, err := h.store.Instructions(r.Context(), bot, limit)
	if err != nil {
		h.log.Error("Failed to get instructions from database", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get transactions", nil)
		return
	}
	if history == nil {
		history = []models.Instruction{}
	}
	writeJSON(w, http.StatusOK, history)
}

// AirdropHandler credits newly minted lamports to an account.
func (h *Handler) AirdropHandler(w http.ResponseWriter, r *http.Request) {
	if !h.airdrop.Enabled {
		writeError(w, http.StatusNotFound, "airdrop is disabled", nil)
		return
	}
	if !h.airdropLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "airdrop rate limit exceeded", nil)
		return
	}

	var req AirdropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed airdrop request: "+err.Error(), nil)
		return
	}
	if req.Lamports == 0 || req.Lamports > h.airdrop.MaxLamports {
		writeError(w, http.StatusBadRequest, "lamports must be between 1 and "+strconv.FormatUint(h.airdrop.MaxLamports, 10), nil)
		return
	}

	if err := h.store.Airdrop(r.Context(), req.Address, req.Lamports); err != nil {
		h.writeProcessError(w, err)
		return
	}
	lamports, err := h.store.Balance(r.Context(), req.Address)
	if err != nil {
		h.writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBalanceView(req.Address, lamports))
}

// HealthHandler reports liveness.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

func (h *Handler) writeProcessError(w http.ResponseWriter, err error) {
	be := trader.Classify(err)
	if be == nil {
		h.log.Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	writeError(w, statusFor(err), err.Error(), be)
}

// statusFor maps an instruction failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, trader.ErrUnauthorized),
		errors.Is(err, trader.ErrBotAddressMismatch),
		errors.Is(err, trader.ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, trader.ErrInvalidInstruction),
		errors.Is(err, trader.ErrUnknownInstruction),
		errors.Is(err, trader.ErrInvalidRiskPercentage):
		return http.StatusBadRequest
	case errors.Is(err, trader.ErrAlreadyActive),
		errors.Is(err, trader.ErrNotActive),
		errors.Is(err, trader.ErrAllocationExists),
		errors.Is(err, trader.ErrDuplicateTransaction):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func pathIdentity(w http.ResponseWriter, r *http.Request, name string) (ledger.Identity, bool) {
	id, err := ledger.ParseIdentity(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return id, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, status int, msg string, be *trader.BotError) {
	resp := ErrorResponse{Error: msg}
	if be != nil {
		code := be.Code
		resp.Code = &code
		resp.Name = be.Name
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
