package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/snaptrack/internal/server/services"
	"github.com/gin-gonic/gin"
)

// register is public; the service forces the staff role.
func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	u, err := s.deps.Users.Register(c.Request.Context(), services.NewUser{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(u))
}

func (s *Server) listUsers(c *gin.Context) {
	offset, limit, ok := pagination(c)
	if !ok {
		return
	}

	list, err := s.deps.Users.List(c.Request.Context(), callerFrom(c), offset, limit)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	out := make([]userResponse, 0, len(list))
	for _, u := range list {
		out = append(out, toUserResponse(u))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.deps.Users.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

func (s *Server) updateUser(c *gin.Context) {
	var req userUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	u, err := s.deps.Users.Update(c.Request.Context(), callerFrom(c), c.Param("id"), req.toUpdate())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.deps.Users.Delete(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
