package common

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

var ErrUploadMissing = errors.New("no file was uploaded")

// Upload is one file read from a multipart form.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// uploadOverhead leaves room for the multipart envelope around the file.
const uploadOverhead = 1 << 20

// ReadUpload reads the file posted under field. Bodies larger than
// maxBytes are cut off; the caller checks the size of what it got back.
func ReadUpload(c *gin.Context, field string, maxBytes int64) (*Upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+uploadOverhead)
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, ErrUploadMissing
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("file is larger than %d MB", maxBytes>>20)
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
