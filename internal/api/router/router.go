// Package router registers the HTTP surface of the screening service.
package router

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"

	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// RegisterRoutes wires every endpoint. The /health check stays outside the
// authenticated group so orchestrators can reach it without credentials.
func RegisterRoutes(
	h *server.Hertz,
	cfg *config.Config,
	screening *handler.ScreeningHandler,
	email *handler.EmailHandler,
	records *handler.RecordsHandler,
	tokens *handler.TokensHandler,
) {
	h.Use(requestID(), accessLog())

	h.GET("/health", func(_ context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")
	if cfg.Server.APIKey != "" {
		api.Use(apiKeyAuth(cfg.Server.APIKey))
	}

	api.POST("/process", screening.HandleProcess)
	api.GET("/process/status/:task_id", screening.HandleStatus)

	api.POST("/generate-email", email.HandleGenerateEmail)
	api.POST("/send-emails", email.HandleSendEmails)
	api.POST("/send-personalized-emails", email.HandleSendPersonalizedEmails)

	api.GET("/user-resume-data/:user_id", records.HandleUserResumeData)
	api.GET("/user-stats/:user_id", records.HandleUserStats)
	api.GET("/user-uploaded-files/:user_id", records.HandleUserUploadedFiles)
	api.PUT("/resumes/:resume_id/category", records.HandleUpdateCategory)
	api.DELETE("/uploaded-file/:file_id", records.HandleDeleteUploadedFile)

	api.GET("/tokens/:user_id", tokens.HandleBalance)
	api.POST("/tokens/initialize/:user_id", tokens.HandleInitialize)
	api.POST("/tokens/purchase", tokens.HandlePurchase)
}

// requestID tags every request with an id, honoring one supplied by the
// caller.
func requestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Response.Header.Set(requestIDHeader, id)
		c.Set("request_id", id)
		c.Next(ctx)
	}
}

// accessLog writes one structured line per request.
func accessLog() app.HandlerFunc {
	log := logger.With("http")
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		log.Info().
			Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Int("status", c.Response.StatusCode()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", c.GetString("request_id")).
			Msg("request")
	}
}

// apiKeyAuth guards the API group with a static bearer key.
func apiKeyAuth(key string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(_ context.Context, _ *app.RequestContext, provided string) (bool, error) {
			return provided == key, nil
		}),
		keyauth.WithErrorHandler(func(_ context.Context, c *app.RequestContext, _ error) {
			c.JSON(consts.StatusUnauthorized, utils.H{"error": "invalid or missing API key"})
			c.Abort()
		}),
	)
}
