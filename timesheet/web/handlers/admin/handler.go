package admin

import (
	"github.com/gin-gonic/gin"

	"piecework.app/piecework/timesheet/core"
	common "piecework.app/piecework/timesheet/web/common"
)

type Endpoint struct {
	base common.Handler
}

func Register(r *gin.RouterGroup, h common.Handler) {
	endpoint := &Endpoint{base: h}
	r.GET("/companies", endpoint.ListCompanies)
	r.POST("/companies", endpoint.CreateCompany)

	users := r.Group("/users", common.RequireCapability(core.CapManageUsers))
	users.GET("", endpoint.ListUsers)
	users.POST("", endpoint.CreateUser)
	users.PUT("/:id", endpoint.UpdateUser)
}

func (ep *Endpoint) ListCompanies(c *gin.Context) {
	companies, err := ep.base.Services.Admin.ListCompanies(c.Request.Context(), common.Actor(c))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, companies)
}

func (ep *Endpoint) CreateCompany(c *gin.Context) {
	var in core.CompanyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	company, err := ep.base.Services.Admin.CreateCompany(c.Request.Context(), common.Actor(c), in)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.Created(c, company)
}

func (ep *Endpoint) ListUsers(c *gin.Context) {
	users, err := ep.base.Services.Admin.ListUsers(c.Request.Context(), common.Actor(c), c.Query("companyId"))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, users)
}

func (ep *Endpoint) CreateUser(c *gin.Context) {
	var in core.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	user, err := ep.base.Services.Admin.CreateUser(c.Request.Context(), common.Actor(c), in)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.Created(c, user)
}

func (ep *Endpoint) UpdateUser(c *gin.Context) {
	var in core.UserUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	user, err := ep.base.Services.Admin.UpdateUser(c.Request.Context(), common.Actor(c), c.Param("id"), in)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, user)
}
