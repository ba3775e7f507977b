package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/service/cart"
	"pawn-pos/internal/service/quote"
	"pawn-pos/internal/service/session"
)

type SessionRegistry interface {
	Create(ctx context.Context) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	View(ctx context.Context, id string) (cart.State, error)
}

type QuoteService interface {
	Reprice(ctx context.Context, q domain.Quote) (domain.Quote, error)
	ToCart(ctx context.Context, c quote.CartAdder, q domain.Quote) (cart.State, error)
}

// Deps carries the services behind the routes.
type Deps struct {
	Sessions    SessionRegistry
	Quotes      QuoteService
	ReadyChecks map[string]ReadyCheck
	CORSOrigins []string
	Now         func() time.Time
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Sessions == nil {
		return nil, errors.New("session registry required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger).Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(logger, deps.ReadyChecks))

	h := &handlers{sessions: deps.Sessions, quotes: deps.Quotes, now: deps.Now, logger: logger}

	router.POST("/sessions", h.createSession)

	// Reads never open a session.
	router.GET("/sessions/:sessionId/cart", h.getCart)

	sess := router.Group("/sessions/:sessionId", sessionMiddleware(deps.Sessions))
	sess.DELETE("/cart", h.clearCart)
	sess.POST("/cart/items", h.addItem)
	sess.DELETE("/cart/items/:itemId", h.removeItem)
	sess.PUT("/cart/items/:itemId/quantity", h.updateQuantity)
	sess.PUT("/cart/items/:itemId/transaction-type", h.setTransactionType)
	sess.PUT("/cart/customer", h.setCustomer)
	sess.DELETE("/cart/customer", h.clearCustomer)
	sess.POST("/cart/customer/guest", h.guestCustomer)

	if deps.Quotes != nil {
		router.POST("/quotes/reprice", h.repriceQuote)
		sess.POST("/cart/quote", h.quoteToCart)
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}
