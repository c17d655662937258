package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"piecework.app/piecework/timesheet/core"
	common "piecework.app/piecework/timesheet/web/common"
	web "piecework.app/piecework/web/common"
	"piecework.app/piecework/web/middlewares"
)

type Endpoint struct {
	base common.Handler
}

// RegisterPublic adds the routes reachable without a session.
func RegisterPublic(r *gin.RouterGroup, h common.Handler) {
	endpoint := &Endpoint{base: h}
	r.POST("/auth/login", endpoint.Login)
	r.POST("/auth/logout", endpoint.Logout)
}

func Register(r *gin.RouterGroup, h common.Handler) {
	endpoint := &Endpoint{base: h}
	r.GET("/me", endpoint.Me)
	r.PUT("/me/password", endpoint.ChangePassword)
}

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type PasswordDTO struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

func setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middlewares.SessionCookie, token, maxAge, "/", "", c.Request.TLS != nil, true)
}

func (ep *Endpoint) Login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err)
		return
	}

	session, err := ep.base.Services.Auth.Login(c.Request.Context(), dto.Username, dto.Password)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	setSessionCookie(c, session.Token, int(time.Until(session.ExpiresAt).Seconds()))
	ep.base.OK(c, session)
}

func (ep *Endpoint) Logout(c *gin.Context) {
	setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, web.NewSuccessResponse(gin.H{}))
}

func (ep *Endpoint) Me(c *gin.Context) {
	session, err := ep.base.Services.Auth.Me(c.Request.Context(), common.Actor(c))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, session)
}

func (ep *Endpoint) ChangePassword(c *gin.Context) {
	var dto PasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	err := ep.base.Services.Auth.ChangePassword(c.Request.Context(), common.Actor(c), dto.CurrentPassword, dto.NewPassword)
	if errors.Is(err, core.ErrInvalidCredentials) {
		// a wrong current password must not read as an expired session
		err = &core.FieldError{Field: "currentPassword", Message: "is incorrect"}
	}
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, gin.H{})
}
