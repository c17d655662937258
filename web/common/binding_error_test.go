package common

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type resolveBody struct {
	Resolution string `json:"resolution" binding:"required,oneof=save discard"`
}

type quantityBody struct {
	Quantity *decimal.Decimal `json:"quantity" binding:"required"`
	Rows     int              `json:"rows" binding:"gte=1"`
	Chunk    int              `json:"chunk" binding:"omitempty,gt=10"`
}

func bindJSON(body string, obj interface{}) error {
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return binding.JSON.Bind(req, obj)
}

func TestFormatBindingError(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		obj       interface{}
		wantMsg   string
		wantField string
	}{
		{name: "oneof lists choices", body: `{"resolution":"later"}`, obj: &resolveBody{},
			wantMsg: "Field 'resolution' must be one of: save, discard", wantField: "resolution"},
		{name: "missing field", body: `{}`, obj: &resolveBody{},
			wantMsg: "Field 'resolution' is required", wantField: "resolution"},
		{name: "bad decimal", body: `{"quantity":"six","rows":1}`, obj: &quantityBody{},
			wantMsg: "Quantities and prices must be decimal numbers such as 12 or 3.5"},
		{name: "gte", body: `{"quantity":"2","rows":0}`, obj: &quantityBody{},
			wantMsg: "Field 'rows' must be 1 or more", wantField: "rows"},
		{name: "gt", body: `{"quantity":"2","rows":1,"chunk":5}`, obj: &quantityBody{},
			wantMsg: "Field 'chunk' must be greater than 10", wantField: "chunk"},
		{name: "wrong type", body: `{"quantity":"2","rows":"many"}`, obj: &quantityBody{},
			wantMsg: "Field 'rows' should be of type int", wantField: "rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bindJSON(tt.body, tt.obj)
			assert.Equal(t, tt.wantMsg, FormatBindingError(err))
			assert.Equal(t, tt.wantField, BindingErrorField(err))
		})
	}
}

func TestFormatBindingErrorPlainErrors(t *testing.T) {
	assert.Equal(t, "", FormatBindingError(nil))
	assert.Equal(t, "Request body is empty", FormatBindingError(io.EOF))
	assert.Equal(t, "boom", FormatBindingError(errors.New("boom")))
	assert.Equal(t, "", BindingErrorField(errors.New("boom")))
}
