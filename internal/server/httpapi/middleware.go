package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/gin-gonic/gin"
)

const callerKey = "snaptrack.caller"

func requestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// authenticate resolves the bearer access token into the caller and stores
// it on the context. Requests without a usable token stop here with 401.
func (s *Server) authenticate(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader(common.AuthorizationHeaderName))
	if !ok {
		c.Header("WWW-Authenticate", common.BearerScheme)
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Detail: "not authenticated"})
		return
	}

	user, err := s.deps.Sessions.ResolveCaller(c.Request.Context(), token)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.Set(callerKey, user)
	c.Next()
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func callerFrom(c *gin.Context) *models.User {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
