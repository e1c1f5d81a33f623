package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) listLocations(c *gin.Context) {
	offset, limit, ok := pagination(c)
	if !ok {
		return
	}

	list, err := s.deps.Catalogue.ListLocations(c.Request.Context(), callerFrom(c), offset, limit)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	out := make([]locationResponse, 0, len(list))
	for _, l := range list {
		out = append(out, toLocationResponse(l))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getLocation(c *gin.Context) {
	l, err := s.deps.Catalogue.GetLocation(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLocationResponse(l))
}

func (s *Server) createLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	l, err := s.deps.Catalogue.CreateLocation(c.Request.Context(), callerFrom(c), &models.Location{
		Name:         req.Name,
		Address:      req.Address,
		Code:         req.Code,
		GPSLatitude:  req.GPSLatitude,
		GPSLongitude: req.GPSLongitude,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toLocationResponse(l))
}

func (s *Server) listCategories(c *gin.Context) {
	activeOnly, err := strconv.ParseBool(c.DefaultQuery("active_only", "false"))
	if err != nil {
		badRequest(c, "active_only must be a boolean")
		return
	}

	offset, limit, ok := pagination(c)
	if !ok {
		return
	}

	list, err := s.deps.Catalogue.ListCategories(c.Request.Context(), callerFrom(c), activeOnly, offset, limit)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	out := make([]categoryResponse, 0, len(list))
	for _, cat := range list {
		out = append(out, toCategoryResponse(cat))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getCategory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid category id")
		return
	}

	cat, err := s.deps.Catalogue.GetCategory(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCategoryResponse(cat))
}

func (s *Server) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	cat, err := s.deps.Catalogue.CreateCategory(c.Request.Context(), callerFrom(c), &models.Category{
		Name:        req.Name,
		Code:        req.Code,
		IconName:    req.IconName,
		Description: req.Description,
		IsActive:    active,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCategoryResponse(cat))
}
