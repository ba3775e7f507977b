package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/service/session"
)

type handlers struct {
	sessions SessionRegistry
	quotes   QuoteService
	now      func() time.Time
	logger   *zap.Logger
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type transactionTypeRequest struct {
	TransactionType string `json:"transactionType"`
}

func (h *handlers) createSession(c *gin.Context) {
	s, err := h.sessions.Create(c.Request.Context())
	if errors.Is(err, session.ErrTooManySessions) {
		c.JSON(http.StatusServiceUnavailable, errorBody(err.Error()))
		return
	}
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorBody("session unavailable"))
		return
	}
	c.JSON(http.StatusCreated, toCartResponse(s.ID, s.Cart.Snapshot()))
}

func (h *handlers) getCart(c *gin.Context) {
	id := strings.TrimSpace(c.Param("sessionId"))
	st, err := h.sessions.View(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, toCartResponse(id, st))
}

func (h *handlers) clearCart(c *gin.Context) {
	s := sessionFrom(c)
	st, err := s.Cart.Clear(c.Request.Context())
	writeState(c, s.ID, st, err)
}

func (h *handlers) addItem(c *gin.Context) {
	s := sessionFrom(c)
	var item domain.CartLineItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid item: "+err.Error()))
		return
	}
	if item.TransactionType != "" {
		tt, err := domain.ParseTransactionType(string(item.TransactionType))
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		item.TransactionType = tt
	}
	st, err := s.Cart.AddItem(c.Request.Context(), item)
	writeState(c, s.ID, st, err)
}

func (h *handlers) removeItem(c *gin.Context) {
	s := sessionFrom(c)
	st, err := s.Cart.RemoveItem(c.Request.Context(), domain.ItemID(c.Param("itemId")))
	writeState(c, s.ID, st, err)
}

func (h *handlers) updateQuantity(c *gin.Context) {
	s := sessionFrom(c)
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("quantity required"))
		return
	}
	st, err := s.Cart.UpdateQuantity(c.Request.Context(), domain.ItemID(c.Param("itemId")), *req.Quantity)
	writeState(c, s.ID, st, err)
}

func (h *handlers) setTransactionType(c *gin.Context) {
	s := sessionFrom(c)
	var req transactionTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	tt, err := domain.ParseTransactionType(req.TransactionType)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	st, err := s.Cart.SetTransactionType(c.Request.Context(), domain.ItemID(c.Param("itemId")), tt)
	writeState(c, s.ID, st, err)
}

func (h *handlers) setCustomer(c *gin.Context) {
	s := sessionFrom(c)
	var customer domain.CustomerRef
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid customer"))
		return
	}
	st, err := s.Cart.SetCustomer(c.Request.Context(), customer)
	writeState(c, s.ID, st, err)
}

func (h *handlers) clearCustomer(c *gin.Context) {
	s := sessionFrom(c)
	st, err := s.Cart.ClearCustomer(c.Request.Context())
	writeState(c, s.ID, st, err)
}

func (h *handlers) guestCustomer(c *gin.Context) {
	s := sessionFrom(c)
	st, err := s.Cart.SetCustomer(c.Request.Context(), domain.NewGuestCustomer(h.now()))
	writeState(c, s.ID, st, err)
}
