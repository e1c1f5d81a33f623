package httpapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// pagination reads skip and limit. On bad input it writes 400 and reports false.
func pagination(c *gin.Context) (offset, limit int, ok bool) {
	offset, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || offset < 0 {
		badRequest(c, "skip must be a non-negative integer")
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return 0, 0, false
	}
	return offset, limit, true
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func optionalInt64(v string) (*int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func optionalFloat(v string) (*float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func optionalTime(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
