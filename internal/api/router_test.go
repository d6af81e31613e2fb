package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pruebachat/chatcore/internal/api"
	"github.com/pruebachat/chatcore/internal/location"
	"github.com/pruebachat/chatcore/internal/media"
	"github.com/pruebachat/chatcore/internal/middleware"
	"github.com/pruebachat/chatcore/internal/models"
	"github.com/pruebachat/chatcore/internal/repository/memory"
	"github.com/pruebachat/chatcore/internal/session"
	"github.com/pruebachat/chatcore/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// countingIdentity proves whether an auth request ever reached the identity
// service: local rejections must leave the count at zero.
type countingIdentity struct {
	inner session.Identity

	mu    sync.Mutex
	calls int
}

func (c *countingIdentity) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Authenticate(ctx, email, password)
}

func (c *countingIdentity) CreateAccount(ctx context.Context, email, password string) (*models.User, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.CreateAccount(ctx, email, password)
}

func (c *countingIdentity) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type testEnv struct {
	router   *gin.Engine
	msgs     *memory.MessageStore
	store    *store.Store
	identity *countingIdentity
}

type envOption func(*envConfig)

type envConfig struct {
	blobs     media.BlobStore
	locations location.Provider
}

func withBlobStore(b media.BlobStore) envOption {
	return func(c *envConfig) { c.blobs = b }
}

func withLocations(p location.Provider) envOption {
	return func(c *envConfig) { c.locations = p }
}

// newTestEnv wires the full route table the way cmd/server does, on
// in-memory repositories.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	cfg := &envConfig{
		blobs:     media.NewDiskStore(t.TempDir(), "http://test/blobs"),
		locations: location.NewStaticProvider("", ""),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	users := memory.NewUserStore()
	msgs := memory.NewMessageStore()
	st := store.New(msgs, logger)

	identity := &countingIdentity{inner: session.NewRepoIdentity(users)}
	newSession := func() *session.Manager {
		return session.NewManager(identity, testSecret, time.Hour, logger)
	}

	uploads := media.NewCoordinator(cfg.blobs, st, logger)

	authHandler := api.NewAuthHandler(newSession, logger)
	messageHandler := api.NewMessageHandler(st, uploads, cfg.locations, logger)
	wsHandler := api.NewWSHandler(st, testSecret, logger)

	router := gin.New()
	router.POST("/v1/auth/login", authHandler.Login)
	router.POST("/v1/auth/register", authHandler.Register)
	router.GET("/v1/ws", wsHandler.Subscribe)

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(testSecret))
	v1.POST("/auth/logout", authHandler.Logout)
	v1.GET("/messages", messageHandler.List)
	v1.POST("/messages", messageHandler.Create)
	v1.POST("/messages/image", messageHandler.SendImage)
	v1.POST("/messages/location", messageHandler.SendLocation)
	v1.GET("/location", messageHandler.LocationAvailability)

	return &testEnv{router: router, msgs: msgs, store: st, identity: identity}
}

type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, email, password string) authResponse {
	t.Helper()
	body, _ := json.Marshal(gin.H{"email": email, "password": password})
	w := e.do(t, http.MethodPost, "/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, "register failed: %s", w.Body.String())

	var resp authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) uploadImage(t *testing.T, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
