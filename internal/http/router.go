// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, route handlers and the WebSocket live views. It centralizes
// cross-cutting concerns such as tracing, correlation IDs, logging and
// redaction, panic recovery, metrics, CORS, security headers, identity,
// idempotency, rate limiting and compression.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/docs"
	"github.com/tbourn/go-social-chat/internal/config"
	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/http/handlers"
	"github.com/tbourn/go-social-chat/internal/http/middleware"
	"github.com/tbourn/go-social-chat/internal/http/ws"
	"github.com/tbourn/go-social-chat/internal/realtime"
	"github.com/tbourn/go-social-chat/internal/repo"
	"github.com/tbourn/go-social-chat/internal/services"
)

// friendRepoShim adapts the repository free functions to the
// services.FriendRepo interface expected by the FriendService.
type friendRepoShim struct{}

// CreateFriendship proxies repo.CreateFriendship.
func (friendRepoShim) CreateFriendship(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.Friendship, error) {
	return repo.CreateFriendship(ctx, db, senderID, receiverID)
}

// FindFriendship proxies repo.FindFriendship.
func (friendRepoShim) FindFriendship(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.Friendship, error) {
	return repo.FindFriendship(ctx, db, senderID, receiverID)
}

// GetFriendshipForReceiver proxies repo.GetFriendshipForReceiver.
func (friendRepoShim) GetFriendshipForReceiver(ctx context.Context, db *gorm.DB, id, receiverID string) (*domain.Friendship, error) {
	return repo.GetFriendshipForReceiver(ctx, db, id, receiverID)
}

// UpdateFriendshipStatus proxies repo.UpdateFriendshipStatus.
func (friendRepoShim) UpdateFriendshipStatus(ctx context.Context, db *gorm.DB, id, from, to string) error {
	return repo.UpdateFriendshipStatus(ctx, db, id, from, to)
}

// ListPendingForReceiver proxies repo.ListPendingForReceiver.
func (friendRepoShim) ListPendingForReceiver(ctx context.Context, db *gorm.DB, userID string) ([]domain.Friendship, error) {
	return repo.ListPendingForReceiver(ctx, db, userID)
}

// ListFriendships proxies repo.ListFriendships.
func (friendRepoShim) ListFriendships(ctx context.Context, db *gorm.DB, userID string) ([]domain.Friendship, error) {
	return repo.ListFriendships(ctx, db, userID)
}

// corsHeaders are the request headers browsers may send cross-origin.
var corsHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
	middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
}

// RegisterRoutes attaches all middleware, HTTP endpoints and WebSocket
// endpoints to the given Gin engine. Services publish committed changes to
// broker, which feeds the live views.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//
// and, per API route:
//  8. Auth: resolve the caller
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user, bypass on replay)
//  11. gzip (REST only; WebSocket upgrades are not compressed)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, broker *realtime.Broker, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"Sec-WebSocket-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  corsHeaders,
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
		corsCfg.AllowWebSockets = true
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		Revalidate:   true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services <- repo/db/broker
	tries := cfg.Realtime.ReadRetryMax
	friendSvc := services.NewFriendService(db, friendRepoShim{}, broker)
	profileSvc := &services.ProfileService{DB: db, ReadTries: tries}
	inboxSvc := &services.InboxService{DB: db, ReadTries: tries}
	msgSvc := &services.MessageService{
		DB:        db,
		Publisher: broker,
		MaxRunes:  cfg.MaxMessageLength,
		ReadTries: tries,
	}
	secretSvc := &services.SecretService{
		DB:        db,
		Publisher: broker,
		MaxRunes:  cfg.MaxSecretLength,
		ReadTries: tries,
	}
	readSvc := &services.ReadService{DB: db}
	idemSvc := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	backend := &services.ConversationBackend{MessageSvc: msgSvc, ProfileSvc: profileSvc}

	h := handlers.New(handlers.Services{
		Friends:  friendSvc,
		Profiles: profileSvc,
		Inbox:    inboxSvc,
		Messages: msgSvc,
		Secrets:  secretSvc,
		Reads:    readSvc,
		Idem:     idemSvc,
	})

	auth := middleware.Auth(middleware.AuthOptions{
		Secret:      cfg.Auth.JWTSecret,
		Issuer:      cfg.Auth.Issuer,
		AllowHeader: cfg.Auth.AllowHeader,
	})
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		auth,
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope:  idempotencyScope,
		}, idemSvc.Exists),
		rl.Handler(),
		gzip.Gzip(gzip.DefaultCompression),
	)
	{
		// Profiles
		api.GET("/me", h.GetMe)
		api.PUT("/me", h.UpdateMe)
		api.GET("/profiles/:id", h.GetProfile)

		// Friends
		api.POST("/friends/send", h.SendFriendRequest)
		api.POST("/friends/accept", h.AcceptFriendRequest)
		api.POST("/friends/reject", h.RejectFriendRequest)
		api.GET("/friends/pending", h.ListPendingRequests)
		api.GET("/friends", h.ListFriends)

		// Inbox and conversations
		api.GET("/inbox", h.GetInbox)
		api.GET("/conversations/:friendId/messages", h.ListMessages)
		api.POST("/conversations/:friendId/messages", h.PostMessage)
		api.POST("/conversations/:friendId/read", h.MarkRead)

		// Secrets
		api.GET("/secret", h.GetOwnSecret)
		api.PUT("/secret", h.SaveSecret)
		api.GET("/secrets/friends", h.ListFriendSecrets)
		api.GET("/secrets/:userId", h.GetUserSecret)
	}

	// Live views
	live := ws.New(ws.Deps{
		Broker:  broker,
		Inbox:   inboxSvc,
		Store:   backend,
		Sender:  backend,
		Friends: msgSvc,
		Secrets: secretSvc,
		Reads:   readSvc,
		Limiter: rl,
	}, ws.Options{
		PingInterval:   cfg.Realtime.PingInterval,
		DedupWindow:    cfg.Realtime.DedupWindow,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	wsg := groupWithPrefix(r, "/ws")
	wsg.Use(auth, rl.Handler())
	{
		wsg.GET("/inbox", live.Inbox)
		wsg.GET("/conversations/:friendId", live.Conversation)
		wsg.GET("/secrets", live.Secrets)
	}
}

// idempotencyScope keys message sends per conversation so a retried send is
// recognized whatever route variant carried it. Other routes are scoped by
// method and path.
func idempotencyScope(c *gin.Context) string {
	if id := c.Param("friendId"); id != "" {
		return "conversation:" + id
	}
	return middleware.RouteScope(c)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
