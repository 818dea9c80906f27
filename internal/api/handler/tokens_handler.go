package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"

	"resume-screener-go/internal/account"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
)

// TokensHandler serves the pre-paid token ledger.
type TokensHandler struct {
	ledger account.Ledger
	cfg    config.TokensConfig
	log    zerolog.Logger
}

// NewTokensHandler wires the handler.
func NewTokensHandler(ledger account.Ledger, cfg config.TokensConfig) *TokensHandler {
	return &TokensHandler{
		ledger: ledger,
		cfg:    cfg,
		log:    logger.With("tokens_handler"),
	}
}

// HandleBalance returns the current balance, creating the account with its
// free grant on first contact.
func (h *TokensHandler) HandleBalance(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	balance, err := h.ledger.Balance(ctx, userID)
	if err != nil {
		h.log.Error().Str("user_id", userID).Err(err).Msg("balance lookup failed")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to load token balance"})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"user_id":    userID,
		"tokens":     balance.Tokens,
		"total_used": balance.TotalUsed,
	})
}

// HandleInitialize explicitly provisions the free grant for a user. The
// operation is idempotent; an existing account keeps its balance.
func (h *TokensHandler) HandleInitialize(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	balance, err := h.ledger.Balance(ctx, userID)
	if err != nil {
		h.log.Error().Str("user_id", userID).Err(err).Msg("token initialization failed")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to initialize tokens"})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"message": "Tokens initialized",
		"user_id": userID,
		"tokens":  balance.Tokens,
	})
}

type purchaseRequest struct {
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
}

// HandlePurchase credits tokens to a user. A missing amount buys the
// standard package.
func (h *TokensHandler) HandlePurchase(ctx context.Context, c *app.RequestContext) {
	var req purchaseRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "user_id is required"})
		return
	}
	amount := req.Amount
	if amount <= 0 {
		amount = h.cfg.PurchasePackage
	}

	newBalance, err := h.ledger.Credit(ctx, req.UserID, amount)
	if err != nil {
		h.log.Error().Str("user_id", req.UserID).Err(err).Msg("token purchase failed")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to purchase tokens"})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"message": "Tokens purchased successfully",
		"user_id": req.UserID,
		"added":   amount,
		"tokens":  newBalance,
	})
}
