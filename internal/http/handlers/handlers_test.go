package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/http/middleware"
	"github.com/tbourn/go-social-chat/internal/repo"
	"github.com/tbourn/go-social-chat/internal/services"
)

// ---------- test plumbing ----------

type friendRepo struct{}

func (friendRepo) CreateFriendship(ctx context.Context, db *gorm.DB, s, r string) (*domain.Friendship, error) {
	return repo.CreateFriendship(ctx, db, s, r)
}
func (friendRepo) FindFriendship(ctx context.Context, db *gorm.DB, s, r string) (*domain.Friendship, error) {
	return repo.FindFriendship(ctx, db, s, r)
}
func (friendRepo) GetFriendshipForReceiver(ctx context.Context, db *gorm.DB, id, r string) (*domain.Friendship, error) {
	return repo.GetFriendshipForReceiver(ctx, db, id, r)
}
func (friendRepo) UpdateFriendshipStatus(ctx context.Context, db *gorm.DB, id, from, to string) error {
	return repo.UpdateFriendshipStatus(ctx, db, id, from, to)
}
func (friendRepo) ListPendingForReceiver(ctx context.Context, db *gorm.DB, u string) ([]domain.Friendship, error) {
	return repo.ListPendingForReceiver(ctx, db, u)
}
func (friendRepo) ListFriendships(ctx context.Context, db *gorm.DB, u string) ([]domain.Friendship, error) {
	return repo.ListFriendships(ctx, db, u)
}

type testEnv struct {
	db *gorm.DB
	r  *gin.Engine
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	idem := &services.IdempotencyService{DB: db, TTL: time.Hour}
	h := New(Services{
		Friends:  services.NewFriendService(db, friendRepo{}, nil),
		Profiles: &services.ProfileService{DB: db},
		Inbox:    &services.InboxService{DB: db},
		Messages: &services.MessageService{DB: db, MaxRunes: 50},
		Secrets:  &services.SecretService{DB: db, MaxRunes: 20},
		Reads:    &services.ReadService{DB: db},
		Idem:     idem,
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	api := r.Group("/",
		middleware.Auth(middleware.AuthOptions{AllowHeader: true}),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{
			Scope: func(c *gin.Context) string { return "conversation:" + c.Param("friendId") },
		}, idem.Exists),
	)
	api.GET("/me", h.GetMe)
	api.PUT("/me", h.UpdateMe)
	api.GET("/profiles/:id", h.GetProfile)
	api.POST("/friends/send", h.SendFriendRequest)
	api.POST("/friends/accept", h.AcceptFriendRequest)
	api.POST("/friends/reject", h.RejectFriendRequest)
	api.GET("/friends/pending", h.ListPendingRequests)
	api.GET("/friends", h.ListFriends)
	api.GET("/inbox", h.GetInbox)
	api.GET("/conversations/:friendId/messages", h.ListMessages)
	api.POST("/conversations/:friendId/messages", h.PostMessage)
	api.POST("/conversations/:friendId/read", h.MarkRead)
	api.GET("/secret", h.GetOwnSecret)
	api.PUT("/secret", h.SaveSecret)
	api.GET("/secrets/friends", h.ListFriendSecrets)
	api.GET("/secrets/:userId", h.GetUserSecret)

	return &testEnv{db: db, r: r}
}

// do performs a request as user (no identity when user is empty). Extra
// headers are given as name/value pairs.
func (e *testEnv) do(t *testing.T, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) profile(t *testing.T, id, email, name string) {
	t.Helper()
	p := &domain.Profile{ID: id, Email: email}
	if name != "" {
		p.DisplayName = &name
	}
	if err := repo.UpsertProfile(context.Background(), e.db, p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func (e *testEnv) befriend(t *testing.T, a, b string) *domain.Friendship {
	t.Helper()
	ctx := context.Background()
	f, err := repo.CreateFriendship(ctx, e.db, a, b)
	if err != nil {
		t.Fatalf("create friendship: %v", err)
	}
	if err := repo.UpdateFriendshipStatus(ctx, e.db, f.ID, domain.StatusPending, domain.StatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return f
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("status = %d; want %d (body %s)", w.Code, code, w.Body.String())
	}
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, code int, errCode string) {
	t.Helper()
	wantStatus(t, w, code)
	er := decode[ErrorResponse](t, w)
	if er.Code != errCode || er.RequestID != "rid-test" {
		t.Fatalf("error body = %+v; want code %q", er, errCode)
	}
}
