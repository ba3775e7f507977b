package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pawn-pos/internal/service/session"
)

type ctxKey string

const sessionCtxKey ctxKey = "session"

// sessionMiddleware resolves :sessionId and stores the open session on the
// request context.
func sessionMiddleware(reg SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.Param("sessionId"))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("session id required"))
			return
		}
		s, err := reg.Get(c.Request.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrClosed):
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody("shutting down"))
				return
			case errors.Is(err, session.ErrTooManySessions):
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody(err.Error()))
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		ctx := context.WithValue(c.Request.Context(), sessionCtxKey, s)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *session.Session {
	s, _ := c.Request.Context().Value(sessionCtxKey).(*session.Session)
	return s
}
