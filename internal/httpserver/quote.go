package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/service/quote"
	"pawn-pos/internal/store"
)

func (h *handlers) repriceQuote(c *gin.Context) {
	var q domain.Quote
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid quote"))
		return
	}
	priced, err := h.quotes.Reprice(c.Request.Context(), q)
	if err != nil {
		h.quoteError(c, q, err)
		return
	}
	c.JSON(http.StatusOK, priced)
}

func (h *handlers) quoteToCart(c *gin.Context) {
	s := sessionFrom(c)
	var q domain.Quote
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid quote"))
		return
	}
	st, err := h.quotes.ToCart(c.Request.Context(), s.Cart, q)
	if err != nil && !errors.Is(err, store.ErrStorageWrite) {
		h.quoteError(c, q, err)
		return
	}
	writeState(c, s.ID, st, err)
}

func (h *handlers) quoteError(c *gin.Context, q domain.Quote, err error) {
	switch {
	case errors.Is(err, quote.ErrQuoteExpired):
		c.JSON(http.StatusGone, errorBody(err.Error()))
		return
	case errors.Is(err, quote.ErrInvalidQuote):
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.logger.Error("quote pricing failed", zap.String("quote", q.ID), zap.Error(err))
	c.JSON(http.StatusBadGateway, errorBody("pricing unavailable"))
}
