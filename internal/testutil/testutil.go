package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/repository"
	"github.com/abrezinsky/slotboard/internal/schedule"
)

// AdminEmail is the address the test admin list recognises.
const AdminEmail = "admin@example.org"

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// SeedWeek fills repo with the weekly template for the week containing now.
func SeedWeek(t *testing.T, repo repository.SlotRepository, now time.Time) []models.Slot {
	t.Helper()
	slots := schedule.BuildWeek(now, schedule.DefaultCutoffHour, schedule.DefaultCatalog())
	if err := repo.SeedSlots(context.Background(), slots); err != nil {
		t.Fatalf("failed to seed week: %v", err)
	}
	return slots
}

// Member returns a signed-in non-admin identity.
func Member(uid string) models.Identity {
	return models.Identity{UID: uid, Name: "Member " + uid, Email: uid + "@example.org"}
}

// Admin returns a signed-in identity on the test admin list.
func Admin() models.Identity {
	return models.Identity{UID: "admin-uid", Name: "Admin", Email: AdminEmail}
}

// Admins is a fixed admin allow-list.
type Admins []string

// IsAdmin reports whether email is listed.
func (a Admins) IsAdmin(email string) bool {
	for _, e := range a {
		if e == email {
			return true
		}
	}
	return false
}

// DefaultAdmins recognises AdminEmail only.
func DefaultAdmins() Admins {
	return Admins{AdminEmail}
}

// Clock is a settable time source for services.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Broadcast is one recorded broadcaster call.
type Broadcast struct {
	Type    string
	Payload interface{}
}

// RecordingBroadcaster records every broadcast for assertions.
type RecordingBroadcaster struct {
	mu       sync.Mutex
	messages []Broadcast
}

// BroadcastMessage records the message.
func (b *RecordingBroadcaster) BroadcastMessage(msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, Broadcast{Type: msgType, Payload: payload})
}

// Messages returns a copy of everything broadcast so far.
func (b *RecordingBroadcaster) Messages() []Broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Broadcast(nil), b.messages...)
}

// Types returns the recorded message types in order.
func (b *RecordingBroadcaster) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, len(b.messages))
	for i, m := range b.messages {
		types[i] = m.Type
	}
	return types
}
