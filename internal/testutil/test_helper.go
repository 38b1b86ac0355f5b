package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestHelper provides utility functions for tests
type TestHelper struct {
	t *testing.T
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// OpenTestDB returns a migrated in-memory SQLite database private to the test.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateTestUser creates a test user with default values
func (h *TestHelper) CreateTestUser(id uint, username, email string) *models.User {
	if username == "" {
		username = fmt.Sprintf("user%d", id)
	}
	if email == "" {
		email = username + "@example.com"
	}

	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: "hashed_password_123",
		FullName:     "Test User",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// SeedUsers inserts users with the given ids into db.
func (h *TestHelper) SeedUsers(db *gorm.DB, ids ...uint) []*models.User {
	h.t.Helper()
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		u := h.CreateTestUser(id, "", "")
		if err := db.Create(u).Error; err != nil {
			h.t.Fatalf("seed user %d: %v", id, err)
		}
		users = append(users, u)
	}
	return users
}

// CreateTestSubscription creates a monthly USD subscription starting at start.
func (h *TestHelper) CreateTestSubscription(userID uint, name string, start time.Time) *models.Subscription {
	if name == "" {
		name = "Streaming"
	}
	sub := &models.Subscription{
		UserID:   userID,
		Name:     name,
		Price:    9.99,
		Currency: models.CurrencyUSD,
		Status:   models.SubscriptionActive,
		Category: models.CategoryEntertainment,
	}
	sub.Reschedule(start, models.FrequencyMonthly)
	return sub
}

// CreateTestMessage creates a direct text message from senderID to receiverID
func (h *TestHelper) CreateTestMessage(senderID, receiverID uint, content string) *models.Message {
	if content == "" {
		content = "Test message"
	}
	return &models.Message{
		ClientID:   uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: &receiverID,
		Content:    content,
		Type:       models.TextMessage,
	}
}

// AssertError checks if an error occurred when it should (or shouldn't)
func (h *TestHelper) AssertError(err error, shouldErr bool, testName string) {
	if (err != nil) != shouldErr {
		if shouldErr {
			h.t.Errorf("%s: expected error but got nil", testName)
		} else {
			h.t.Errorf("%s: unexpected error: %v", testName, err)
		}
	}
}

// AssertEqual checks if two values are equal
func (h *TestHelper) AssertEqual(got, want interface{}, testName string) {
	if got != want {
		h.t.Errorf("%s: got %v, want %v", testName, got, want)
	}
}
