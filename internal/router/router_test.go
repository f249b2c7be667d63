package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-sweet-shop/config"
	"github.com/oksasatya/go-sweet-shop/internal/application"
	"github.com/oksasatya/go-sweet-shop/internal/container"
	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/internal/infrastructure/memory"
	"github.com/oksasatya/go-sweet-shop/internal/interface/middleware"
	"github.com/oksasatya/go-sweet-shop/internal/router"
	"github.com/oksasatya/go-sweet-shop/pkg/helpers"
	"github.com/oksasatya/go-sweet-shop/pkg/validation"
)

type testServer struct {
	t          *testing.T
	engine     *gin.Engine
	adminToken string
	userToken  string
}

func newTestServer(t *testing.T, rdb *redis.Client, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	if cfg == nil {
		cfg = &config.Config{AuthRateLimit: 100, PurchaseRateLimit: 100, DebugMetricsEnabled: true}
	}
	logger := helpers.NewNopLogger()
	auth := application.NewAuthService(
		memory.NewUserRepository(),
		helpers.NewJWTManager("router-test-secret", time.Hour),
		helpers.NewPasswordHasher(bcrypt.MinCost),
		logger,
	)
	c := &container.Container{
		Config:   cfg,
		Logger:   logger,
		Redis:    rdb,
		Sweets:   application.NewSweetService(memory.NewSweetRepository(), logger),
		Auth:     auth,
		Verifier: auth,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestIDMiddleware())
	reg := router.NewRegistry(engine)
	router.InitModules(reg, c)
	reg.RegisterAll()

	ctx := context.Background()
	_, _, err := auth.EnsureAdmin(ctx, application.RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "admin-pass-1"})
	require.NoError(t, err)

	s := &testServer{t: t, engine: engine}
	w := s.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "admin@example.com", "password": "admin-pass-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.adminToken = decode[map[string]string](t, w)["token"]

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]any{"name": "Customer", "email": "customer@example.com", "password": "customer-pass"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s.userToken = decode[map[string]string](t, w)["token"]
	return s
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["message"]
}

func laddu() map[string]any {
	return map[string]any{
		"name":        "Laddu",
		"description": "Ball-shaped sweets made of flour, fat, and sugar.",
		"price":       200,
		"category":    "Dry",
		"image":       "https://img.example.com/laddu.jpg",
		"quantity":    5,
	}
}

func (s *testServer) addSweet(body map[string]any) entity.Sweet {
	w := s.do(http.MethodPost, "/api/sweets", s.adminToken, body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[entity.Sweet](s.t, w)
}

func (s *testServer) list() []entity.Sweet {
	w := s.do(http.MethodGet, "/api/sweets", "", nil)
	require.Equal(s.t, http.StatusOK, w.Code)
	return decode[[]entity.Sweet](s.t, w)
}

func TestAdminAddsSweet(t *testing.T) {
	s := newTestServer(t, nil, nil)

	created := s.addSweet(laddu())
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 5, created.Quantity)
	assert.Equal(t, entity.CategoryDry, created.Category)

	list := s.list()
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].Quantity)
}

func TestAddRequiresAllFields(t *testing.T) {
	s := newTestServer(t, nil, nil)
	body := laddu()
	delete(body, "image")

	w := s.do(http.MethodPost, "/api/sweets", s.adminToken, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, message(t, w), "Please add all required fields")
	assert.Empty(t, s.list())

	body = laddu()
	body["category"] = "Candy"
	w = s.do(http.MethodPost, "/api/sweets", s.adminToken, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = laddu()
	body["price"] = "cheap"
	w = s.do(http.MethodPost, "/api/sweets", s.adminToken, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.list())
}

func TestConcurrentPurchaseOfLastUnit(t *testing.T) {
	s := newTestServer(t, nil, nil)
	body := laddu()
	body["quantity"] = 1
	sweet := s.addSweet(body)

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = s.do(http.MethodPost, "/api/sweets/"+sweet.ID+"/purchase", s.userToken, nil).Code
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusBadRequest}, codes)
	assert.Equal(t, 0, s.list()[0].Quantity)

	w := s.do(http.MethodPost, "/api/sweets/"+sweet.ID+"/purchase", s.userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, entity.ErrOutOfStock.Error(), message(t, w))
}

func TestSearchByName(t *testing.T) {
	s := newTestServer(t, nil, nil)
	for _, name := range []string{"Gulab Jamun", "Kaju Katli"} {
		body := laddu()
		body["name"] = name
		s.addSweet(body)
	}

	w := s.do(http.MethodGet, "/api/sweets/search?name=jam", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]entity.Sweet](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, "Gulab Jamun", found[0].Name)

	w = s.do(http.MethodGet, "/api/sweets/search?category=All&maxPrice=200", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]entity.Sweet](t, w), 2)

	w = s.do(http.MethodGet, "/api/sweets/search?category=Candy", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]entity.Sweet](t, w))

	w = s.do(http.MethodGet, "/api/sweets/search?minPrice=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRestock(t *testing.T) {
	s := newTestServer(t, nil, nil)
	sweet := s.addSweet(laddu())
	path := "/api/sweets/" + sweet.ID + "/restock"

	for _, body := range []map[string]any{{"quantity": -3}, {"quantity": 0}, {"quantity": 2.5}, {}} {
		w := s.do(http.MethodPost, path, s.adminToken, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
	}
	assert.Equal(t, 5, s.list()[0].Quantity)

	w := s.do(http.MethodPost, path, s.adminToken, map[string]any{"quantity": 10})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 15, decode[entity.Sweet](t, w).Quantity)

	w = s.do(http.MethodPost, path, s.adminToken, map[string]any{"amount": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 16, decode[entity.Sweet](t, w).Quantity)

	w = s.do(http.MethodPost, path, s.userToken, map[string]any{"quantity": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNonAdminCannotDelete(t *testing.T) {
	s := newTestServer(t, nil, nil)
	sweet := s.addSweet(laddu())

	w := s.do(http.MethodDelete, "/api/sweets/"+sweet.ID, s.userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, s.list(), 1)

	w = s.do(http.MethodDelete, "/api/sweets/"+sweet.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodDelete, "/api/sweets/"+sweet.ID, s.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sweet.ID, decode[map[string]string](t, w)["id"])
	assert.Empty(t, s.list())
}

func TestUnknownIDs(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(http.MethodPost, "/api/sweets/does-not-exist/purchase", s.userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, entity.ErrSweetNotFound.Error(), message(t, w))

	w = s.do(http.MethodPut, "/api/sweets/does-not-exist", s.adminToken, map[string]any{"price": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, "/api/sweets/does-not-exist", s.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurchaseRequiresIdentity(t *testing.T) {
	s := newTestServer(t, nil, nil)
	sweet := s.addSweet(laddu())

	w := s.do(http.MethodPost, "/api/sweets/"+sweet.ID+"/purchase", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodPost, "/api/sweets/"+sweet.ID+"/purchase", "forged.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 5, s.list()[0].Quantity)
}

func TestUpdate(t *testing.T) {
	s := newTestServer(t, nil, nil)
	sweet := s.addSweet(laddu())

	w := s.do(http.MethodPut, "/api/sweets/"+sweet.ID, s.adminToken, map[string]any{"price": 250, "id": "other"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[entity.Sweet](t, w)
	assert.Equal(t, 250.0, updated.Price)
	assert.Equal(t, sweet.ID, updated.ID)
	assert.Equal(t, sweet.Name, updated.Name)

	w = s.do(http.MethodPut, "/api/sweets/"+sweet.ID, s.adminToken, map[string]any{"quantity": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPut, "/api/sweets/"+sweet.ID, s.adminToken, map[string]any{"quantity": 3000000000})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, message(t, w), "quantity")
	assert.Equal(t, 5, s.list()[0].Quantity)

	w = s.do(http.MethodPost, "/api/sweets/"+sweet.ID+"/restock", s.adminToken, map[string]any{"quantity": entity.MaxQuantity})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 5, s.list()[0].Quantity)
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(http.MethodPost, "/api/auth/register", "", map[string]any{"name": "Again", "email": "CUSTOMER@example.com", "password": "customer-pass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, entity.ErrDuplicateEmail.Error(), message(t, w))

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]any{"name": "Short", "email": "short@example.com", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "customer@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, entity.ErrInvalidCredentials.Error(), message(t, w))

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "customer@example.com", "password": "customer-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[map[string]string](t, w)
	assert.Equal(t, "user", res["role"])
	assert.Equal(t, "customer@example.com", res["email"])
	assert.NotEmpty(t, res["token"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestImageUploadWithoutStorage(t *testing.T) {
	s := newTestServer(t, nil, nil)
	sweet := s.addSweet(laddu())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "laddu.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sweets/"+sweet.ID+"/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.adminToken)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	// login and register during setup use one hit each
	s := newTestServer(t, rdb, &config.Config{AuthRateLimit: 2, PurchaseRateLimit: 100})

	creds := map[string]any{"email": "customer@example.com", "password": "customer-pass"}
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/auth/login", "", creds).Code)
	w := s.do(http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, message(t, w))
}

func TestHealthAndDebug(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/debug/vars", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sweet_inventory")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}
