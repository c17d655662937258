package timesheets

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"piecework.app/piecework/timesheet/core"
	common "piecework.app/piecework/timesheet/web/common"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Endpoint struct {
	base common.Handler
}

func Register(r *gin.RouterGroup, h common.Handler) {
	endpoint := &Endpoint{base: h}
	r.POST("/timesheets", endpoint.Submit)
	r.GET("/timesheets", endpoint.History)
	r.GET("/timesheets/export", common.RequireCapability(core.CapExportTimesheets), endpoint.Export)
	r.GET("/timesheets/:id", endpoint.Get)
	r.GET("/timesheets/:id/history", endpoint.ApprovalHistory)
	r.DELETE("/timesheets/:id", endpoint.Delete)
	r.DELETE("/timesheet-items/:id", endpoint.DeleteItem)
}

func (ep *Endpoint) Submit(c *gin.Context) {
	var submission core.Submission
	if err := c.ShouldBindJSON(&submission); err != nil {
		ep.base.BadRequest(c, err)
		return
	}

	rec, err := ep.base.Services.Timesheets.Submit(c.Request.Context(), common.Actor(c), submission)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.Created(c, rec)
}

func (ep *Endpoint) History(c *gin.Context) {
	var filter core.RecordFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		ep.base.BadRequest(c, err)
		return
	}

	groups, err := ep.base.Services.Timesheets.History(c.Request.Context(), common.Actor(c), filter)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, groups)
}

func (ep *Endpoint) Get(c *gin.Context) {
	rec, err := ep.base.Services.Timesheets.Get(c.Request.Context(), common.Actor(c), c.Param("id"))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, rec)
}

func (ep *Endpoint) ApprovalHistory(c *gin.Context) {
	entries, err := ep.base.Services.Approvals.History(c.Request.Context(), common.Actor(c), c.Param("id"))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, entries)
}

func (ep *Endpoint) Delete(c *gin.Context) {
	result, err := ep.base.Services.RecycleBin.DeleteRecord(c.Request.Context(), common.Actor(c), c.Param("id"))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, result)
}

func (ep *Endpoint) DeleteItem(c *gin.Context) {
	result, err := ep.base.Services.RecycleBin.DeleteLineItem(c.Request.Context(), common.Actor(c), c.Param("id"))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, result)
}

// Export streams the approved timesheets of a date range as a workbook.
func (ep *Endpoint) Export(c *gin.Context) {
	var filter core.ExportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		ep.base.BadRequest(c, err)
		return
	}

	buf, name, err := ep.base.Services.Exports.Export(c.Request.Context(), common.Actor(c), filter)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, name, url.PathEscape(name)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
