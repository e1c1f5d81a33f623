package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/server/services"
	"github.com/gin-gonic/gin"
)

const (
	fileField = "file"
	sniffLen  = 512

	// multipartOverhead is the room left for form fields and part headers
	// on top of the file itself.
	multipartOverhead = 1 << 20
)

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEMultipartPOSTForm
}

// limitBody caps the request body so an oversized upload fails while it is
// being read.
func (s *Server) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize+multipartOverhead)
}

// readUpload extracts the file part together with the optional latitude and
// longitude fields. It returns a nil upload when no file part was sent. The
// returned close func must be called once the upload is consumed.
func (s *Server) readUpload(c *gin.Context) (*services.AttachmentUpload, func(), error) {
	fh, err := c.FormFile(fileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, nil, formError(err)
	}

	lat, err := optionalFloat(c.PostForm("latitude"))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: latitude must be a number", common.ErrValidation)
	}
	lon, err := optionalFloat(c.PostForm("longitude"))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: longitude must be a number", common.ErrValidation)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}

	body, contentType, err := sniff(f, fh)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}

	up := &services.AttachmentUpload{
		FileName:    filepath.Base(strings.ReplaceAll(fh.Filename, `\`, "/")),
		ContentType: contentType,
		Size:        fh.Size,
		Body:        body,
		Latitude:    lat,
		Longitude:   lon,
	}
	return up, func() { _ = f.Close() }, nil
}

// sniff keeps the declared part content type, or detects one from the first
// bytes when the client sent none.
func sniff(f multipart.File, fh *multipart.FileHeader) (io.Reader, string, error) {
	declared := fh.Header.Get("Content-Type")
	if declared != "" && declared != "application/octet-stream" {
		return f, declared, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", err
	}
	head = head[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, "", err
	}
	return f, http.DetectContentType(head), nil
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: request body exceeds %d bytes", common.ErrValidation, tooLarge.Limit)
	}
	return fmt.Errorf("%w: malformed multipart form: %v", common.ErrValidation, err)
}
