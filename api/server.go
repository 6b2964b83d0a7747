package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	limiter "github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/atlasfin/atlasbank/internal/bookkeeper"
	"github.com/atlasfin/atlasbank/internal/identities"
	"github.com/atlasfin/atlasbank/internal/marketdata"
	"github.com/atlasfin/atlasbank/internal/trading"
	"github.com/atlasfin/atlasbank/internal/trading/risk"
)

// Server represents the API server
type Server struct {
	router      *gin.Engine
	logger      *zap.Logger
	identities  identities.IdentityService
	bookkeeper  bookkeeper.BookkeeperService
	marketdata  marketdata.MarketDataService
	trading     trading.TradingService
	rateLimiter gin.HandlerFunc
}

// NewServer creates a new API server with injected service interfaces
func NewServer(
	logger *zap.Logger,
	ids identities.IdentityService,
	bk bookkeeper.BookkeeperService,
	md marketdata.MarketDataService,
	td trading.TradingService,
) *Server {
	server := &Server{
		logger:     logger,
		identities: ids,
		bookkeeper: bk,
		marketdata: md,
		trading:    td,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("atlasbank-api"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 100 requests per minute per IP on authenticated routes
	store := memory.NewStore()
	rate, err := limiter.NewRateFromFormatted("100-M")
	if err != nil {
		logger.Fatal("invalid rate limit format", zap.Error(err))
	}
	server.rateLimiter = ginlimiter.NewMiddleware(limiter.New(store, rate))

	server.router = router
	server.registerRoutes()
	return server
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	public := s.router.Group("/api/v1")
	{
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
		public.GET("/health", s.healthCheck)

		auth := public.Group("/auth")
		{
			auth.POST("/register", s.register)
			auth.POST("/login", s.login)
			auth.POST("/2fa/verify", s.verify2FA)
		}

		market := public.Group("/market")
		{
			market.GET("/quotes", s.listQuotes)
			market.GET("/quotes/:symbol", s.getQuote)
			market.GET("/candles/:symbol", s.getCandles)
		}
	}

	protected := s.router.Group("/api/v1")
	protected.Use(s.authMiddleware(), s.rateLimiter)
	{
		auth := protected.Group("/auth")
		{
			auth.POST("/2fa/enable", s.enable2FA)
			auth.POST("/2fa/confirm", s.confirm2FA)
		}

		accounts := protected.Group("/accounts")
		{
			accounts.GET("", s.listAccounts)
			accounts.GET("/:currency/transactions", s.listTransactions)
		}

		trade := protected.Group("/trading")
		{
			trade.POST("/orders", s.placeOrder)
			trade.GET("/orders", s.listOrders)
			trade.GET("/orders/:id", s.getOrder)
			trade.DELETE("/orders/:id", s.cancelOrder)
			trade.GET("/positions", s.listPositions)
			trade.GET("/trades", s.listTrades)
			trade.GET("/portfolio/risk", s.riskReport)
		}
	}
}

// authMiddleware validates the Bearer token and stores the user id in the
// request context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := s.identities.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// respondError maps service errors onto HTTP status codes with a uniform
// { "error": ... } body.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, identities.ErrInvalidCredentials),
		errors.Is(err, identities.ErrInvalidToken),
		errors.Is(err, identities.ErrInvalidTOTP):
		return http.StatusUnauthorized
	case errors.Is(err, bookkeeper.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, identities.ErrUserNotFound),
		errors.Is(err, bookkeeper.ErrAccountNotFound),
		errors.Is(err, marketdata.ErrQuoteNotFound),
		errors.Is(err, trading.ErrInstrumentNotFound),
		errors.Is(err, trading.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, identities.ErrUserExists),
		errors.Is(err, bookkeeper.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, trading.ErrRiskLimitExceeded),
		errors.Is(err, risk.ErrPositionLimit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, trading.ErrInstrumentSuspended),
		errors.Is(err, trading.ErrQuantityBounds),
		errors.Is(err, trading.ErrLotSize),
		errors.Is(err, trading.ErrPriceRequired),
		errors.Is(err, trading.ErrPriceCollar),
		errors.Is(err, trading.ErrStopPriceDirection),
		errors.Is(err, trading.ErrStopPriceRequired),
		errors.Is(err, trading.ErrNoQuote),
		errors.Is(err, trading.ErrLeverageExceeded),
		errors.Is(err, trading.ErrOversell),
		errors.Is(err, trading.ErrOrderNotCancellable),
		errors.Is(err, identities.ErrMFANotEnrolled):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
