package approvals

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"piecework.app/piecework/timesheet/core"
	common "piecework.app/piecework/timesheet/web/common"
)

type Endpoint struct {
	base common.Handler
}

func Register(r *gin.RouterGroup, h common.Handler) {
	endpoint := &Endpoint{base: h}
	g := r.Group("/approvals")
	g.GET("/pending", endpoint.Pending)
	g.POST("/records/:id/approve", endpoint.ApproveRecord)
	g.POST("/records/:id/reject", endpoint.RejectRecord)
	g.POST("/groups/approve", endpoint.ApproveGroup)
	g.POST("/batch", endpoint.ApproveBatch)
	g.PUT("/items/:id/quantity", endpoint.EditQuantity)

	// quantity edits in progress
	g.GET("/draft", endpoint.CurrentDraft)
	g.POST("/draft", endpoint.BeginEdit)
	g.PUT("/draft", endpoint.UpdateDraft)
	g.DELETE("/draft", endpoint.DiscardEdit)
	g.POST("/draft/commit", endpoint.CommitEdit)
	g.POST("/draft/resolve", endpoint.Resolve)
}

type CommentDTO struct {
	Comment string `json:"comment" binding:"max=500"`
}

type GroupDTO struct {
	GroupKey string `json:"groupKey" binding:"required"`
	Comment  string `json:"comment" binding:"max=500"`
}

type BatchDTO struct {
	GroupKeys []string `json:"groupKeys" binding:"required,min=1"`
	Comment   string   `json:"comment" binding:"max=500"`
}

type QuantityDTO struct {
	Quantity *decimal.Decimal `json:"quantity" binding:"required"`
}

type BeginEditDTO struct {
	ItemID string `json:"itemId" binding:"required"`
}

type ResolveDTO struct {
	Resolution core.Resolution `json:"resolution" binding:"required,oneof=save discard"`
}

// bindComment accepts an empty body.
func (ep *Endpoint) bindComment(c *gin.Context) (string, bool) {
	var dto CommentDTO
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err)
		return "", false
	}
	return dto.Comment, true
}

func (ep *Endpoint) Pending(c *gin.Context) {
	groups, err := ep.base.Services.Approvals.FetchPending(c.Request.Context(), common.Actor(c))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, groups)
}

func (ep *Endpoint) ApproveRecord(c *gin.Context) {
	comment, ok := ep.bindComment(c)
	if !ok {
		return
	}
	rec, err := ep.base.Services.Approvals.ApproveSingle(c.Request.Context(), common.Actor(c), c.Param("id"), comment)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, rec)
}

func (ep *Endpoint) RejectRecord(c *gin.Context) {
	comment, ok := ep.bindComment(c)
	if !ok {
		return
	}
	rec, err := ep.base.Services.Approvals.Reject(c.Request.Context(), common.Actor(c), c.Param("id"), comment)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, rec)
}

func (ep *Endpoint) ApproveGroup(c *gin.Context) {
	var dto GroupDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	result, err := ep.base.Services.Approvals.ApproveGrouped(c.Request.Context(), common.Actor(c), dto.GroupKey, dto.Comment)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, result)
}

// ApproveBatch answers 200 with per-group failures listed in the result.
func (ep *Endpoint) ApproveBatch(c *gin.Context) {
	var dto BatchDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	result, err := ep.base.Services.Approvals.ApproveBatch(c.Request.Context(), common.Actor(c), dto.GroupKeys, dto.Comment)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, result)
}

func (ep *Endpoint) EditQuantity(c *gin.Context) {
	var dto QuantityDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err, "quantity")
		return
	}
	item, err := ep.base.Services.Approvals.EditQuantity(c.Request.Context(), common.Actor(c), c.Param("id"), *dto.Quantity)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, item)
}

func (ep *Endpoint) CurrentDraft(c *gin.Context) {
	draft, err := ep.base.Services.Approvals.CurrentDraft(c.Request.Context(), common.Actor(c))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, draft)
}

func (ep *Endpoint) BeginEdit(c *gin.Context) {
	var dto BeginEditDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	draft, err := ep.base.Services.Approvals.BeginEdit(c.Request.Context(), common.Actor(c), dto.ItemID)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, draft)
}

func (ep *Endpoint) UpdateDraft(c *gin.Context) {
	var dto QuantityDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err, "quantity")
		return
	}
	draft, err := ep.base.Services.Approvals.UpdateDraft(c.Request.Context(), common.Actor(c), *dto.Quantity)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, draft)
}

func (ep *Endpoint) CommitEdit(c *gin.Context) {
	item, err := ep.base.Services.Approvals.CommitEdit(c.Request.Context(), common.Actor(c))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, item)
}

func (ep *Endpoint) DiscardEdit(c *gin.Context) {
	if err := ep.base.Services.Approvals.DiscardEdit(c.Request.Context(), common.Actor(c)); err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, gin.H{})
}

// Resolve saves or discards the held-back edit and runs the pending action.
// When the action fails after the save, the response still carries the save.
func (ep *Endpoint) Resolve(c *gin.Context) {
	var dto ResolveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	result, err := ep.base.Services.Approvals.ResolveConflict(c.Request.Context(), common.Actor(c), dto.Resolution)
	if err != nil && result != nil {
		ep.base.FailPartial(c, err, result)
		return
	}
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, result)
}
