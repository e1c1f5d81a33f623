package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/dmitrijs2005/snaptrack/internal/server/services"
	"github.com/gin-gonic/gin"
)

// createInvoice accepts either a JSON body or a multipart form carrying the
// invoice fields and an optional file.
func (s *Server) createInvoice(c *gin.Context) {
	var (
		in     services.CreateInvoiceInput
		upload *services.AttachmentUpload
	)

	if isMultipart(c) {
		s.limitBody(c)

		var (
			done func()
			err  error
		)
		upload, done, err = s.readUpload(c)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		defer done()

		in, err = invoiceFromForm(c)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
	} else {
		var req invoiceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		in = req.toCreate()
	}

	inv, err := s.deps.Invoices.Create(c.Request.Context(), callerFrom(c), in, upload)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInvoiceWithImages(inv))
}

func invoiceFromForm(c *gin.Context) (services.CreateInvoiceInput, error) {
	in := services.CreateInvoiceInput{
		LocationID: optionalString(c.PostForm("location_id")),
		Note:       optionalString(c.PostForm("note")),
		Status:     models.InvoiceStatus(c.PostForm("status")),
	}

	var err error
	if in.CategoryID, err = optionalInt64(c.PostForm("category_id")); err != nil {
		return in, fmt.Errorf("%w: category_id must be an integer", common.ErrValidation)
	}

	if raw := c.PostForm("extra_metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Metadata); err != nil {
			return in, fmt.Errorf("%w: extra_metadata must be a JSON object", common.ErrValidation)
		}
	}

	capturedAt, err := optionalTime(c.PostForm("captured_at"))
	if err != nil {
		return in, fmt.Errorf("%w: captured_at must be RFC 3339", common.ErrValidation)
	}
	if capturedAt != nil {
		in.CapturedAt = *capturedAt
	}
	return in, nil
}

func (s *Server) listInvoices(c *gin.Context) {
	offset, limit, ok := pagination(c)
	if !ok {
		return
	}

	categoryID, err := optionalInt64(c.Query("category_id"))
	if err != nil {
		badRequest(c, "category_id must be an integer")
		return
	}

	filter := models.InvoiceFilter{
		UserID:     c.Query("user_id"),
		LocationID: c.Query("location_id"),
		CategoryID: categoryID,
		Status:     models.InvoiceStatus(c.Query("status")),
		Offset:     offset,
		Limit:      limit,
	}

	list, err := s.deps.Invoices.List(c.Request.Context(), callerFrom(c), filter)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	out := make([]invoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toInvoiceResponse(inv))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getInvoice(c *gin.Context) {
	withImages, err := strconv.ParseBool(c.DefaultQuery("with_images", "true"))
	if err != nil {
		badRequest(c, "with_images must be a boolean")
		return
	}

	inv, err := s.deps.Invoices.Get(c.Request.Context(), callerFrom(c), c.Param("id"), withImages)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	if withImages {
		c.JSON(http.StatusOK, toInvoiceWithImages(inv))
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

func (s *Server) updateInvoice(c *gin.Context) {
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	inv, err := s.deps.Invoices.Update(c.Request.Context(), callerFrom(c), c.Param("id"), req.toUpdate())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

func (s *Server) deleteInvoice(c *gin.Context) {
	if err := s.deps.Invoices.Delete(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
