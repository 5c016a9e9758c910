package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/realtime"
	"github.com/tbourn/go-social-chat/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// recorder is a realtime.Publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(_ context.Context, e realtime.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

// repoFuncs satisfies FriendRepo with the package-level repo functions.
type repoFuncs struct{}

func (repoFuncs) CreateFriendship(ctx context.Context, db *gorm.DB, s, r string) (*domain.Friendship, error) {
	return repo.CreateFriendship(ctx, db, s, r)
}
func (repoFuncs) FindFriendship(ctx context.Context, db *gorm.DB, s, r string) (*domain.Friendship, error) {
	return repo.FindFriendship(ctx, db, s, r)
}
func (repoFuncs) GetFriendshipForReceiver(ctx context.Context, db *gorm.DB, id, r string) (*domain.Friendship, error) {
	return repo.GetFriendshipForReceiver(ctx, db, id, r)
}
func (repoFuncs) UpdateFriendshipStatus(ctx context.Context, db *gorm.DB, id, from, to string) error {
	return repo.UpdateFriendshipStatus(ctx, db, id, from, to)
}
func (repoFuncs) ListPendingForReceiver(ctx context.Context, db *gorm.DB, u string) ([]domain.Friendship, error) {
	return repo.ListPendingForReceiver(ctx, db, u)
}
func (repoFuncs) ListFriendships(ctx context.Context, db *gorm.DB, u string) ([]domain.Friendship, error) {
	return repo.ListFriendships(ctx, db, u)
}

func seedProfile(t *testing.T, db *gorm.DB, id, email, name string) {
	t.Helper()
	p := &domain.Profile{ID: id, Email: email}
	if name != "" {
		p.DisplayName = &name
	}
	if err := repo.UpsertProfile(context.Background(), db, p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

// befriend creates an accepted relationship a -> b.
func befriend(t *testing.T, db *gorm.DB, a, b string) *domain.Friendship {
	t.Helper()
	ctx := context.Background()
	f, err := repo.CreateFriendship(ctx, db, a, b)
	if err != nil {
		t.Fatalf("create friendship: %v", err)
	}
	if err := repo.UpdateFriendshipStatus(ctx, db, f.ID, domain.StatusPending, domain.StatusAccepted); err != nil {
		t.Fatalf("accept friendship: %v", err)
	}
	f.Status = domain.StatusAccepted
	return f
}

func seedMessage(t *testing.T, db *gorm.DB, from, to, content string, at time.Time) *domain.Message {
	t.Helper()
	m := &domain.Message{ID: uuid.NewString(), SenderID: from, ReceiverID: to, Content: content, CreatedAt: at}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return m
}
