package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"app":     common.AppName,
		"version": common.AppVersion,
	})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	pair, err := s.deps.Sessions.Login(c.Request.Context(), req.UserName, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenResponse(pair))
}

func (s *Server) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	pair, err := s.deps.Sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenResponse(pair))
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, toUserResponse(callerFrom(c)))
}

func (s *Server) updateMe(c *gin.Context) {
	var req userUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	u, err := s.deps.Users.UpdateSelf(c.Request.Context(), callerFrom(c), req.toUpdate())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}
