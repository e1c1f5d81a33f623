package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/gin-gonic/gin"
)

func (s *Server) uploadAttachment(c *gin.Context) {
	if !isMultipart(c) {
		badRequest(c, "multipart/form-data with a file part is required")
		return
	}
	s.limitBody(c)

	upload, done, err := s.readUpload(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	defer done()

	if upload == nil {
		s.abortWithError(c, fmt.Errorf("%w: file is required", common.ErrValidation))
		return
	}

	a, err := s.deps.Invoices.UploadAttachment(c.Request.Context(), callerFrom(c), c.Param("id"), upload)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAttachmentResponse(a))
}

func (s *Server) listAttachments(c *gin.Context) {
	list, err := s.deps.Invoices.ListAttachments(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAttachmentResponses(list))
}

func (s *Server) deleteAllAttachments(c *gin.Context) {
	n, err := s.deps.Invoices.DeleteAllAttachments(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_count": n})
}

func (s *Server) getAttachment(c *gin.Context) {
	a, err := s.deps.Invoices.GetAttachment(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAttachmentResponse(a))
}

// attachmentContent streams the stored bytes back with the recorded type.
func (s *Server) attachmentContent(c *gin.Context) {
	a, rc, err := s.deps.Invoices.OpenAttachment(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, a.FileSize, a.MimeType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", a.FileName),
	})
}

func (s *Server) deleteAttachment(c *gin.Context) {
	if err := s.deps.Invoices.DeleteAttachment(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
