package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"mnemos/internal/config"
	"mnemos/pkg/circuitbreaker"
	"mnemos/pkg/httpmiddleware"
	"mnemos/pkg/ratelimiter"
)

// SetupRouter wires the HTTP routes and middleware.
func SetupRouter(h *Handler, mw config.MiddlewareConfig) (*gin.Engine, error) {
	r := gin.Default()

	if mw.RateLimiter.Enabled {
		limiter, err := ratelimiter.New(mw.RateLimiter)
		if err != nil {
			return nil, err
		}
		r.Use(httpmiddleware.RateLimit(limiter))
	}
	if mw.CircuitBreaker.Enabled {
		breaker := circuitbreaker.New(
			mw.CircuitBreaker.FailureThreshold,
			mw.CircuitBreaker.SuccessThreshold,
			parseTimeout(mw.CircuitBreaker.Timeout),
		)
		r.Use(httpmiddleware.CircuitBreak(breaker))
	}

	r.GET("/healthz", h.Health)

	apiV1 := r.Group("/api/v1")
	{
		sessions := apiV1.Group("/sessions")
		{
			sessions.POST("", h.StartSession)
			sessions.POST("/:id/reset", h.ResetSession)
			sessions.GET("/:id/replay", h.ReplaySession)
		}

		apiV1.POST("/chat", h.Chat)

		memory := apiV1.Group("/memory")
		{
			memory.GET("/context", h.GetContext)
			memory.POST("/facts", h.RememberFact)
		}

		apiV1.DELETE("/users/:id/memory", h.EraseUser)
	}

	return r, nil
}

func parseTimeout(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
