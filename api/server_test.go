package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atlasfin/atlasbank/api"
	"github.com/atlasfin/atlasbank/internal/bookkeeper"
	"github.com/atlasfin/atlasbank/internal/config"
	"github.com/atlasfin/atlasbank/internal/identities"
	"github.com/atlasfin/atlasbank/internal/marketdata"
	"github.com/atlasfin/atlasbank/internal/messaging"
	"github.com/atlasfin/atlasbank/internal/trading"
	"github.com/atlasfin/atlasbank/pkg/models"
)

type apiFixture struct {
	router *gin.Engine
	token  string
	userID string
}

func setupServer(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Account{}, &models.Transaction{},
		&models.Instrument{}, &models.Order{}, &models.Trade{},
		&models.Position{}, &models.Quote{}, &models.PortfolioValuation{},
	))

	logger := zap.NewNop()
	ids, err := identities.NewService(logger, db, "test-secret", 1)
	require.NoError(t, err)
	bk, err := bookkeeper.NewService(logger, db)
	require.NoError(t, err)
	md, err := marketdata.NewService(logger, db, nil)
	require.NoError(t, err)

	cfg := config.TradingConfig{
		CommissionRate:  0.001,
		CommissionFloor: 1.0,
		SlippageBps:     5,
		PriceCollarPct:  0.10,
		QuoteStaleAfter: time.Hour,
		Risk: config.RiskConfig{
			SizeWeight:       0.4,
			VolatilityWeight: 0.35,
			LeverageWeight:   0.25,
			MaxOrderNotional: 1_000_000,
			VolatilityCap:    0.08,
			MaxLeverage:      10,
			Threshold:        0.75,
			Confidence:       0.95,
			TradingDays:      252,
			LookbackDays:     90,
			MinObservation:   2,
		},
	}
	td, err := trading.NewService(logger, db, bk, md, messaging.NoopPublisher{}, cfg)
	require.NoError(t, err)
	require.NoError(t, td.Start())

	ctx := context.Background()
	user, err := ids.Register(ctx, &models.RegisterRequest{
		Email:     "trader@example.com",
		Username:  "trader",
		Password:  "password123",
		FirstName: "Test",
		LastName:  "Trader",
	})
	require.NoError(t, err)
	resp, err := ids.Login(ctx, &models.LoginRequest{Login: "trader", Password: "password123"})
	require.NoError(t, err)

	userID := user.ID.String()
	_, err = bk.CreateAccount(ctx, userID, "USD")
	require.NoError(t, err)
	require.NoError(t, bk.Deposit(ctx, userID, "USD", decimal.NewFromInt(100_000), "seed"))

	require.NoError(t, db.Create(&models.Instrument{
		ID:            uuid.New(),
		Symbol:        "AAPL",
		Name:          "Apple Inc.",
		Currency:      "USD",
		MinQuantity:   decimal.NewFromInt(1),
		MaxQuantity:   decimal.NewFromInt(100_000),
		LotSize:       decimal.NewFromInt(1),
		MaxLeverage:   decimal.NewFromInt(10),
		DailyVol:      decimal.RequireFromString("0.02"),
		Status:        "active",
		PriceDecimals: 2,
	}).Error)
	require.NoError(t, md.UpsertQuote(ctx, &models.Quote{
		Symbol: "AAPL",
		Price:  decimal.NewFromInt(100),
	}))

	server := api.NewServer(logger, ids, bk, md, td)
	return &apiFixture{router: server.Router(), token: resp.Token, userID: userID}
}

func (f *apiFixture) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/api/v1/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := setupServer(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/accounts", nil, false).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/trading/orders", nil, false).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":      "new@example.com",
		"username":   "newuser",
		"password":   "password123",
		"first_name": "New",
		"last_name":  "User",
	}, false)
	assert.Equal(t, http.StatusCreated, w.Code)

	// duplicate registration conflicts
	w = f.do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":      "new@example.com",
		"username":   "newuser",
		"password":   "password123",
		"first_name": "New",
		"last_name":  "User",
	}, false)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/api/v1/auth/login", gin.H{
		"login":    "trader",
		"password": "password123",
	}, false)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	w = f.do(http.MethodPost, "/api/v1/auth/login", gin.H{
		"login":    "trader",
		"password": "wrongpassword",
	}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestQuoteEndpoints(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/api/v1/market/quotes/AAPL", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/market/quotes/NOPE", nil, false).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/market/quotes", nil, false).Code)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/api/v1/trading/orders", gin.H{
		"symbol":        "AAPL",
		"side":          "buy",
		"type":          "market",
		"quantity":      "10",
		"time_in_force": "IOC",
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusFilled, order.Status)

	w = f.do(http.MethodGet, "/api/v1/trading/orders", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/trading/positions", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "AAPL")
}

func TestPlaceOrderInsufficientFunds(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/api/v1/trading/orders", gin.H{
		"symbol":        "AAPL",
		"side":          "buy",
		"type":          "market",
		"quantity":      "5000",
		"time_in_force": "IOC",
	}, true)
	assert.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "insufficient")
}

func TestPlaceOrderValidationError(t *testing.T) {
	f := setupServer(t)

	// limit order without a price
	w := f.do(http.MethodPost, "/api/v1/trading/orders", gin.H{
		"symbol":        "AAPL",
		"side":          "buy",
		"type":          "limit",
		"quantity":      "10",
		"time_in_force": "GTC",
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestCancelOrderEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/api/v1/trading/orders", gin.H{
		"symbol":        "AAPL",
		"side":          "buy",
		"type":          "limit",
		"price":         "95",
		"quantity":      "10",
		"time_in_force": "GTC",
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))

	w = f.do(http.MethodDelete, "/api/v1/trading/orders/"+order.ID.String(), nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodDelete, "/api/v1/trading/orders/"+uuid.New().String(), nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRiskReportEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/api/v1/trading/portfolio/risk", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report models.RiskReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 0.95, report.Confidence)
	assert.Equal(t, 1, report.Observations)
}

func TestAccountsEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/api/v1/accounts", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "USD")

	w = f.do(http.MethodGet, "/api/v1/accounts/USD/transactions", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deposit")

	w = f.do(http.MethodGet, "/api/v1/accounts/EUR/transactions", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
