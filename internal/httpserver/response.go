package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/service/cart"
	"pawn-pos/internal/store"
)

const storageWarning = "cart changes could not be saved; other registers may not see them"

type cartResponse struct {
	SessionID string                `json:"sessionId"`
	Items     []domain.CartLineItem `json:"items"`
	Customer  *domain.CustomerRef   `json:"customer"`
	Total     string                `json:"total"`
	ItemCount int                   `json:"itemCount"`
	Version   uint64                `json:"version"`
	Warning   string                `json:"warning,omitempty"`
}

func toCartResponse(sessionID string, st cart.State) cartResponse {
	items := st.Items
	if items == nil {
		items = []domain.CartLineItem{}
	}
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return cartResponse{
		SessionID: sessionID,
		Items:     items,
		Customer:  st.Customer,
		Total:     st.Total.StringFixed(2),
		ItemCount: count,
		Version:   st.Version,
	}
}

// writeState answers a cart mutation. Storage write failures still answer
// 200 with the in-memory state and a warning; any other error is a bad
// request.
func writeState(c *gin.Context, sessionID string, st cart.State, err error) {
	resp := toCartResponse(sessionID, st)
	if err != nil {
		if !errors.Is(err, store.ErrStorageWrite) {
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		resp.Warning = storageWarning
	}
	c.JSON(http.StatusOK, resp)
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}
