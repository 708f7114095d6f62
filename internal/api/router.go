package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"coffee-machine-backend/config"
	"coffee-machine-backend/internal/mw"
	"coffee-machine-backend/internal/store"
)

// NewResponseCache creates the GET response cache shared by the router and
// anything else that changes machine state.
func NewResponseCache(cfg *config.ServerConfig) *cache.Cache {
	return cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
}

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, webpushOptions *webpush.Options, alerts Dispatcher, cacheStore *cache.Cache, cfg *config.ServerConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(mw.Logger(log.Named("http")), gin.Recovery())

	handler := NewHandler(s, webpushOptions, alerts, log.Named("api"))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, log)

	caching := mw.Cache(cacheStore, cfg.CacheTTL)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.GET("/machines", caching, handler.ListMachines)
		api.POST("/machines", handler.CreateMachine)
		api.GET("/machines/:id", caching, handler.GetMachine)
		api.GET("/machines/:id/brews", caching, handler.ListBrews)
		api.POST("/machines/:id/brew", handler.Brew)
		api.POST("/machines/:id/refill", handler.RefillMachine)
		api.PUT("/machines/:id/power", handler.SetPower)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
