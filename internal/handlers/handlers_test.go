package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/metrics"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/repository"
	"github.com/chainsplit/chainsplit-backend/internal/service"
	"github.com/chainsplit/chainsplit-backend/internal/storage"
	"github.com/chainsplit/chainsplit-backend/internal/testutil"
	"github.com/chainsplit/chainsplit-backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handlers-secret"

type apiFixture struct {
	app    *fiber.App
	router *routedMessages
}

type routedMessages struct{ messages []*models.Message }

func (r *routedMessages) RouteMessage(m *models.Message) { r.messages = append(r.messages, m) }

// memoryStore keeps attachments in a map.
type memoryStore struct {
	objects map[string][]byte
	types   map[string]string
}

func (s *memoryStore) PutObject(_ context.Context, key string, body io.Reader, _ int64, contentType string) (storage.ObjectStat, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectStat{}, err
	}
	s.objects[key] = data
	s.types[key] = contentType
	return storage.ObjectStat{Key: key, ETag: "etag-" + key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (s *memoryStore) GetObject(_ context.Context, key string) (io.ReadCloser, storage.ObjectStat, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ObjectStat{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectStat{Key: key, ETag: "etag-" + key, Size: int64(len(data)), ContentType: s.types[key]}, nil
}

func newAPIFixture(t *testing.T, store AttachmentStore, userIDs ...uint) *apiFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	testutil.NewTestHelper(t).SeedUsers(db, userIDs...)

	log := logger.Discard()
	userRepo := repository.NewUserRepository(db)
	chainRepo := repository.NewChainRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	chains := service.NewChainService(chainRepo, userRepo, subRepo, nil, metrics.New(), log)
	subs := service.NewSubscriptionService(subRepo, chains, nil, log)
	messages := service.NewMessageService(repository.NewMessageRepository(db), chainRepo, userRepo, nil, log)
	router := &routedMessages{}
	messages.SetRouter(router)

	app := fiber.New()
	Register(app, Set{
		Auth:          NewAuthHandler(service.NewAuthService(userRepo, testSecret, time.Hour), false),
		Users:         NewUserHandler(service.NewUserService(userRepo, nil)),
		Chains:        NewChainHandler(chains),
		Subscriptions: NewSubscriptionHandler(subs),
		Messages:      NewMessageHandler(messages),
		Attachments:   NewAttachmentHandler(store, log),
	}, RouteConfig{JWTSecret: testSecret, CSRFMode: "token"})

	return &apiFixture{app: app, router: router}
}

func token(t *testing.T, userID uint) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

// do sends a JSON request as userID (0 for anonymous) and decodes the reply into out.
func (f *apiFixture) do(t *testing.T, method, path string, userID uint, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func shareOf(chain models.ChainResponse, userID uint) int {
	for _, m := range chain.Members {
		if m.UserID == userID && m.SharePercentage != nil {
			return *m.SharePercentage
		}
	}
	return -1
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t, nil, 1)

	for _, path := range []string{"/api/v1/chains", "/api/v1/subscriptions", "/api/v1/messages/unread", "/api/v1/users/me"} {
		assert.Equal(t, fiber.StatusUnauthorized, f.do(t, "GET", path, 0, nil, nil), path)
	}
	assert.Equal(t, fiber.StatusUnauthorized, f.do(t, "POST", "/api/v1/chains", 0, map[string]string{"name": "x"}, nil))
}

func TestChainLifecycle(t *testing.T) {
	f := newAPIFixture(t, nil, 1, 2, 3, 4)

	var chain models.ChainResponse
	require.Equal(t, fiber.StatusCreated, f.do(t, "POST", "/api/v1/chains", 1, map[string]interface{}{
		"name": "Streaming",
	}, &chain))
	assert.Equal(t, 100, shareOf(chain, 1))
	assert.True(t, chain.Rules.AutoRenew)
	path := "/api/v1/chains/" + jsonID(chain.ID)

	var errBody struct{ Code string }
	assert.Equal(t, fiber.StatusForbidden, f.do(t, "POST", path+"/invite", 2, map[string]interface{}{"user_ids": []uint{3}}, &errBody))
	assert.Equal(t, "forbidden", errBody.Code)
	assert.Equal(t, fiber.StatusBadRequest, f.do(t, "POST", path+"/invite", 1, map[string]interface{}{"user_ids": []uint{}}, nil))
	assert.Equal(t, fiber.StatusNotFound, f.do(t, "POST", path+"/invite", 1, map[string]interface{}{"user_ids": []uint{99}}, nil))

	require.Equal(t, fiber.StatusOK, f.do(t, "POST", path+"/invite", 1, map[string]interface{}{"user_ids": []uint{2, 3}}, &chain))
	assert.Len(t, chain.Members, 3)
	assert.Equal(t, 100, chain.ShareTotal)

	require.Equal(t, fiber.StatusOK, f.do(t, "POST", path+"/accept", 2, nil, &chain))
	assert.Equal(t, 50, shareOf(chain, 1))
	assert.Equal(t, 50, shareOf(chain, 2))

	require.Equal(t, fiber.StatusOK, f.do(t, "POST", path+"/reject", 3, nil, &chain))
	assert.Equal(t, fiber.StatusNotFound, f.do(t, "POST", path+"/accept", 3, nil, nil))

	assert.Equal(t, fiber.StatusOK, f.do(t, "GET", path, 2, nil, &chain))
	assert.Equal(t, fiber.StatusForbidden, f.do(t, "GET", path, 4, nil, nil))
	assert.Equal(t, fiber.StatusNotFound, f.do(t, "GET", "/api/v1/chains/999", 1, nil, nil))
	assert.Equal(t, fiber.StatusBadRequest, f.do(t, "GET", "/api/v1/chains/abc", 1, nil, nil))

	var list struct{ Chains []models.ChainResponse }
	require.Equal(t, fiber.StatusOK, f.do(t, "GET", "/api/v1/chains", 3, nil, &list))
	assert.Len(t, list.Chains, 1)
}

func TestAcceptOverflowConflict(t *testing.T) {
	f := newAPIFixture(t, nil, 1, 2, 3, 4, 5, 6)

	var chain models.ChainResponse
	require.Equal(t, fiber.StatusCreated, f.do(t, "POST", "/api/v1/chains", 1, map[string]string{"name": "Family"}, &chain))
	path := "/api/v1/chains/" + jsonID(chain.ID)
	require.Equal(t, fiber.StatusOK, f.do(t, "POST", path+"/invite", 1, map[string]interface{}{"user_ids": []uint{2, 3, 4, 5, 6}}, nil))

	for _, id := range []uint{2, 3, 4, 5} {
		require.Equal(t, fiber.StatusOK, f.do(t, "POST", path+"/accept", id, nil, &chain))
	}
	assert.Equal(t, 20, shareOf(chain, 5))

	var errBody struct{ Code string }
	assert.Equal(t, fiber.StatusConflict, f.do(t, "POST", path+"/accept", 6, nil, &errBody))
	assert.Equal(t, "invariant_violation", errBody.Code)

	require.Equal(t, fiber.StatusOK, f.do(t, "GET", path, 1, nil, &chain))
	assert.Equal(t, 100, chain.ShareTotal)
	for _, m := range chain.Members {
		if m.UserID == 6 {
			assert.Equal(t, models.MemberPending, m.Status)
		}
	}
}

func TestSubscriptionEndpoints(t *testing.T) {
	f := newAPIFixture(t, nil, 1, 2)

	assert.Equal(t, fiber.StatusBadRequest, f.do(t, "POST", "/api/v1/subscriptions", 1, map[string]interface{}{"name": "Music"}, nil))

	var sub models.SubscriptionResponse
	require.Equal(t, fiber.StatusCreated, f.do(t, "POST", "/api/v1/subscriptions", 1, map[string]interface{}{
		"name":       "Music",
		"price":      9.99,
		"frequency":  "monthly",
		"start_date": "2024-01-31T00:00:00Z",
		"is_shared":  true,
	}, &sub))
	assert.Equal(t, models.CurrencyUSD, sub.Currency)
	assert.True(t, sub.IsShared)
	require.NotNil(t, sub.ChainID)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), sub.NextRenewalDate.UTC())

	var chain models.ChainResponse
	require.Equal(t, fiber.StatusOK, f.do(t, "GET", "/api/v1/chains/"+jsonID(*sub.ChainID), 1, nil, &chain))
	assert.Equal(t, "Music Chain", chain.Name)
	assert.Equal(t, []uint{sub.ID}, chain.SubscriptionIDs)

	path := "/api/v1/subscriptions/" + jsonID(sub.ID)
	assert.Equal(t, fiber.StatusNotFound, f.do(t, "PUT", path, 2, map[string]string{"name": "Mine"}, nil))
	require.Equal(t, fiber.StatusOK, f.do(t, "PUT", path, 1, map[string]string{"frequency": "weekly"}, &sub))
	assert.Equal(t, time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC), sub.NextRenewalDate.UTC())

	var list struct{ Subscriptions []models.SubscriptionResponse }
	require.Equal(t, fiber.StatusOK, f.do(t, "GET", "/api/v1/subscriptions", 1, nil, &list))
	assert.Len(t, list.Subscriptions, 1)

	assert.Equal(t, fiber.StatusNotFound, f.do(t, "DELETE", path, 2, nil, nil))
	assert.Equal(t, fiber.StatusNoContent, f.do(t, "DELETE", path, 1, nil, nil))
	assert.Equal(t, fiber.StatusNotFound, f.do(t, "DELETE", path, 1, nil, nil))
}

func TestAttachSubscriptionToChain(t *testing.T) {
	f := newAPIFixture(t, nil, 1, 2)

	var chain models.ChainResponse
	require.Equal(t, fiber.StatusCreated, f.do(t, "POST", "/api/v1/chains", 1, map[string]string{"name": "Video"}, &chain))
	var sub models.SubscriptionResponse
	require.Equal(t, fiber.StatusCreated, f.do(t, "POST", "/api/v1/subscriptions", 1, map[string]interface{}{
		"name": "Video", "price": 12, "start_date": "2024-05-01T00:00:00Z",
	}, &sub))

	path := "/api/v1/chains/" + jsonID(chain.ID) + "/subscriptions"
	assert.Equal(t, fiber.StatusBadRequest, f.do(t, "POST", path, 1, map[string]uint{}, nil))
	assert.Equal(t, fiber.StatusForbidden, f.do(t, "POST", path, 2, map[string]uint{"subscription_id": sub.ID}, nil))
	require.Equal(t, fiber.StatusOK, f.do(t, "POST", path, 1, map[string]uint{"subscription_id": sub.ID}, &chain))
	require.Equal(t, fiber.StatusOK, f.do(t, "POST", path, 1, map[string]uint{"subscription_id": sub.ID}, &chain))
	assert.Equal(t, []uint{sub.ID}, chain.SubscriptionIDs)
}

func TestMessageEndpoints(t *testing.T) {
	f := newAPIFixture(t, nil, 1, 2, 3)

	var msg models.MessageResponse
	require.Equal(t, fiber.StatusCreated, f.do(t, "POST", "/api/v1/messages", 1, map[string]interface{}{
		"receiver_id": 2, "content": "  hello  ",
	}, &msg))
	assert.Equal(t, "hello", msg.Content)
	require.Len(t, f.router.messages, 1)

	assert.Equal(t, fiber.StatusBadRequest, f.do(t, "POST", "/api/v1/messages", 1, map[string]interface{}{
		"receiver_id": 2, "chain_id": 1, "content": "both",
	}, nil))

	var unread struct{ Unread int64 }
	require.Equal(t, fiber.StatusOK, f.do(t, "GET", "/api/v1/messages/unread", 2, nil, &unread))
	assert.Equal(t, int64(1), unread.Unread)

	var page struct {
		Messages []models.MessageResponse
		Count    int
	}
	require.Equal(t, fiber.StatusOK, f.do(t, "GET", "/api/v1/messages/direct/1", 2, nil, &page))
	assert.Equal(t, 1, page.Count)

	readPath := "/api/v1/messages/" + jsonID(msg.ID) + "/read"
	assert.Equal(t, fiber.StatusForbidden, f.do(t, "PUT", readPath, 3, nil, nil))
	require.Equal(t, fiber.StatusOK, f.do(t, "PUT", readPath, 2, nil, &msg))
	assert.True(t, msg.IsRead)
	require.Equal(t, fiber.StatusOK, f.do(t, "GET", "/api/v1/messages/unread", 2, nil, &unread))
	assert.Zero(t, unread.Unread)
}

func TestChainMessagesRequireParticipant(t *testing.T) {
	f := newAPIFixture(t, nil, 1, 2, 3)

	var chain models.ChainResponse
	require.Equal(t, fiber.StatusCreated, f.do(t, "POST", "/api/v1/chains", 1, map[string]string{"name": "Gym"}, &chain))
	require.Equal(t, fiber.StatusOK, f.do(t, "POST", "/api/v1/chains/"+jsonID(chain.ID)+"/invite", 1, map[string]interface{}{"user_ids": []uint{2}}, nil))

	send := map[string]interface{}{"chain_id": chain.ID, "content": "who pays?"}
	assert.Equal(t, fiber.StatusForbidden, f.do(t, "POST", "/api/v1/messages", 3, send, nil))
	assert.Equal(t, fiber.StatusCreated, f.do(t, "POST", "/api/v1/messages", 2, send, nil))

	var page struct{ Count int }
	assert.Equal(t, fiber.StatusOK, f.do(t, "GET", "/api/v1/chains/"+jsonID(chain.ID)+"/messages", 1, nil, &page))
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, fiber.StatusForbidden, f.do(t, "GET", "/api/v1/chains/"+jsonID(chain.ID)+"/messages", 3, nil, nil))
}

func TestCurrentUserETag(t *testing.T) {
	f := newAPIFixture(t, nil, 1)

	req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 1))
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req = httptest.NewRequest("GET", "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 1))
	req.Header.Set("If-None-Match", etag)
	resp, err = f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPIFixture(t, nil)

	var auth service.AuthResponse
	require.Equal(t, fiber.StatusCreated, f.do(t, "POST", "/api/v1/auth/register", 0, map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "correct-horse",
	}, &auth))
	require.NotEmpty(t, auth.Token)

	assert.Equal(t, fiber.StatusBadRequest, f.do(t, "POST", "/api/v1/auth/register", 0, map[string]string{
		"username": "alice2", "email": "alice@example.com", "password": "correct-horse",
	}, nil))
	assert.Equal(t, fiber.StatusUnauthorized, f.do(t, "POST", "/api/v1/auth/login", 0, map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	}, nil))
	require.Equal(t, fiber.StatusOK, f.do(t, "POST", "/api/v1/auth/login", 0, map[string]string{
		"email": "alice@example.com", "password": "correct-horse",
	}, &auth))

	req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAttachmentsUnconfigured(t *testing.T) {
	f := newAPIFixture(t, nil, 1)
	assert.Equal(t, fiber.StatusServiceUnavailable, f.do(t, "GET", "/api/v1/attachments/1/x.png", 1, nil, nil))
}

func TestAttachmentUploadAndFetch(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
	f := newAPIFixture(t, store, 1)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "receipt.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("paid 9.99"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/attachments", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, 1))
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var uploaded struct{ Key string }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	require.True(t, strings.HasPrefix(uploaded.Key, storage.AttachmentPrefix+"/1/"))

	req = httptest.NewRequest("GET", "/api/v1/"+uploaded.Key, nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 1))
	resp, err = f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "paid 9.99", string(data))

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/v1/attachments/1/missing.txt", 1, nil, nil))
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
