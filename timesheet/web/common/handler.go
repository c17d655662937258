package common

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/core"
	"piecework.app/piecework/utils"
	web "piecework.app/piecework/web/common"
	"piecework.app/piecework/web/middlewares"
)

// Handler carries what every endpoint needs.
type Handler struct {
	Services *core.Services
	Logger   *zap.Logger
}

// ConflictResponse is the 409 body sent when an unsaved edit holds back an
// action; the client answers it through the resolve endpoint.
type ConflictResponse struct {
	Message string             `json:"message"`
	Code    string             `json:"code"`
	Draft   *core.Draft        `json:"draft"`
	Pending core.PendingAction `json:"pending"`
}

// ValidationResponse adds the offending field when one is known.
type ValidationResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
}

// Actor returns the signed-in caller.
func Actor(c *gin.Context) core.Actor {
	actor, _ := middlewares.Principal[core.Actor](c)
	return actor
}

// RequireCapability lets the request through only when the caller's role
// grants capability.
func RequireCapability(capability core.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Actor(c).Can(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, web.NewErrorResponse(core.ErrForbidden.Error()))
			return
		}
		c.Next()
	}
}

// BadRequest reports a body that failed to bind. fallbackField names the
// field when the decoder could not, as with malformed decimals.
func (h *Handler) BadRequest(c *gin.Context, err error, fallbackField ...string) {
	resp := ValidationResponse{Message: web.FormatBindingError(err), Code: "validation", Field: web.BindingErrorField(err)}
	if resp.Field == "" && len(fallbackField) > 0 {
		resp.Field = fallbackField[0]
	}
	c.JSON(http.StatusBadRequest, resp)
}

// PartialFailureResponse is sent when part of a request was applied before
// err stopped the rest. Cause is the body Fail would have sent for err.
type PartialFailureResponse struct {
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Cause   interface{} `json:"cause"`
	Partial interface{} `json:"partial"`
}

// Fail writes err with the status its kind maps to.
func (h *Handler) Fail(c *gin.Context, err error) {
	c.JSON(h.failure(c, err))
}

// FailPartial writes err like Fail and includes what was already applied.
func (h *Handler) FailPartial(c *gin.Context, err error, partial interface{}) {
	status, cause := h.failure(c, err)
	c.JSON(status, PartialFailureResponse{
		Message: "the request was only partly applied",
		Code:    "partial_failure",
		Cause:   cause,
		Partial: partial,
	})
}

func (h *Handler) failure(c *gin.Context, err error) (int, interface{}) {
	_ = c.Error(err)

	var unsaved *core.UnsavedEditError
	if errors.As(err, &unsaved) {
		return http.StatusConflict, ConflictResponse{
			Message: unsaved.Error(),
			Code:    "unsaved_edit",
			Draft:   unsaved.Draft,
			Pending: unsaved.Action,
		}
	}
	var header *core.HeaderError
	var field *core.FieldError
	switch {
	case errors.As(err, &field):
		return http.StatusBadRequest, ValidationResponse{Message: field.Message, Code: "validation", Field: field.Field}
	case errors.As(err, &header), errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, ValidationResponse{Message: err.Error(), Code: "validation"}
	case errors.Is(err, core.ErrInvalidCredentials), errors.Is(err, core.ErrSessionExpired):
		return http.StatusUnauthorized, web.NewErrorResponse(err.Error())
	case errors.Is(err, core.ErrForbidden), errors.Is(err, core.ErrAccountDisabled):
		return http.StatusForbidden, web.NewErrorResponse(err.Error())
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, web.NewErrorResponse("not found")
	case errors.Is(err, core.ErrEntryUnavailable):
		return http.StatusGone, web.NewErrorResponse(err.Error())
	case errors.Is(err, core.ErrInvalidTransition), errors.Is(err, core.ErrNoDraft), errors.Is(err, core.ErrNoPendingConflict):
		return http.StatusConflict, web.NewErrorResponse(err.Error())
	case errors.Is(err, context.DeadlineExceeded), utils.IsTransient(err):
		h.Logger.Warn("backend unavailable", zap.String("path", c.Request.URL.Path), zap.Error(err))
		return http.StatusServiceUnavailable, web.NewErrorResponse("the service is temporarily unavailable, please try again")
	default:
		h.Logger.Error("request failed",
			zap.String("path", c.Request.URL.Path), zap.String("requestId", middlewares.GetRequestID(c)), zap.Error(err))
		return http.StatusInternalServerError, web.NewErrorResponse("something went wrong, please try again")
	}
}

func (h *Handler) OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, web.NewSuccessResponse(data))
}

func (h *Handler) Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, web.NewSuccessResponse(data))
}
