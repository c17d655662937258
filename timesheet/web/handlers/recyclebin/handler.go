package recyclebin

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"piecework.app/piecework/timesheet/core"
	"piecework.app/piecework/timesheet/model"
	common "piecework.app/piecework/timesheet/web/common"
	"piecework.app/piecework/utils"
	web "piecework.app/piecework/web/common"
)

type Endpoint struct {
	base common.Handler
}

func Register(r *gin.RouterGroup, h common.Handler) {
	endpoint := &Endpoint{base: h}
	g := r.Group("/recycle-bin", common.RequireCapability(core.CapManageRecycleBin))
	g.GET("", endpoint.List)
	g.POST("/:id/restore", endpoint.Restore)
	g.DELETE("/:id", endpoint.Purge)
}

// parseFilter reads the list query. Dates are yyyy-mm-dd or RFC 3339; a
// bare "to" date covers the whole day.
func parseFilter(c *gin.Context) (core.RecycleFilter, error) {
	filter := core.RecycleFilter{
		ItemType: model.RecycleItemType(c.Query("itemType")),
		Search:   c.Query("search"),
	}
	var err error
	if v := c.Query("page"); v != "" {
		if filter.Page, err = strconv.Atoi(v); err != nil {
			return filter, &core.FieldError{Field: "page", Message: "must be a number"}
		}
	}
	if v := c.Query("pageSize"); v != "" {
		if filter.PageSize, err = strconv.Atoi(v); err != nil || filter.PageSize > 200 {
			return filter, &core.FieldError{Field: "pageSize", Message: "must be a number up to 200"}
		}
	}
	if filter.From, err = parseTime("from", c.Query("from"), false); err != nil {
		return filter, err
	}
	if filter.To, err = parseTime("to", c.Query("to"), true); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTime(field, v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := utils.ParseISOTime(v)
	if err != nil {
		return nil, &core.FieldError{Field: field, Message: fmt.Sprintf("%q is not a date", v)}
	}
	if endOfDay && utils.IsDate(v) {
		end := t.Add(24*time.Hour - time.Nanosecond)
		return &end, nil
	}
	return t, nil
}

func (ep *Endpoint) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	page, err := ep.base.Services.RecycleBin.List(c.Request.Context(), common.Actor(c), filter)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, web.NewSearchResponse(page.Entries, int64(page.Total)).Paged(page.Page, page.PageSize))
}

func (ep *Endpoint) Restore(c *gin.Context) {
	result, err := ep.base.Services.RecycleBin.Restore(c.Request.Context(), common.Actor(c), c.Param("id"))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, result)
}

func (ep *Endpoint) Purge(c *gin.Context) {
	removal, err := ep.base.Services.RecycleBin.Purge(c.Request.Context(), common.Actor(c), c.Param("id"))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, gin.H{"removal": removal})
}
