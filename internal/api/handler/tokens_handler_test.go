package handler_test

import (
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/account"
	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/config"
)

func tokensEngine() (*server.Hertz, *handler.TokensHandler) {
	h := handler.NewTokensHandler(&account.UnlimitedLedger{Grant: 100},
		config.TokensConfig{InitialGrant: 100, PerResume: 1, PurchasePackage: 50})
	engine := server.Default()
	engine.GET("/api/v1/tokens/:user_id", h.HandleBalance)
	engine.POST("/api/v1/tokens/initialize/:user_id", h.HandleInitialize)
	engine.POST("/api/v1/tokens/purchase", h.HandlePurchase)
	return engine, h
}

func TestHandleTokenBalance(t *testing.T) {
	engine, _ := tokensEngine()

	w := ut.PerformRequest(engine.Engine, "GET", "/api/v1/tokens/user-1", nil)
	assert.Equal(t, 200, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp["user_id"])
	assert.EqualValues(t, 100, resp["tokens"])
}

func TestHandleTokenPurchase(t *testing.T) {
	engine, _ := tokensEngine()

	w := ut.PerformRequest(engine.Engine, "POST", "/api/v1/tokens/purchase",
		jsonBody(t, map[string]interface{}{"user_id": "user-1", "amount": 25}),
		ut.Header{Key: "Content-Type", Value: "application/json"})
	assert.Equal(t, 200, w.Code)

	// Missing user id is rejected.
	w = ut.PerformRequest(engine.Engine, "POST", "/api/v1/tokens/purchase",
		jsonBody(t, map[string]interface{}{"amount": 25}),
		ut.Header{Key: "Content-Type", Value: "application/json"})
	assert.Equal(t, 400, w.Code)
}
