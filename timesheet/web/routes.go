package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/core"
	common "piecework.app/piecework/timesheet/web/common"
	"piecework.app/piecework/timesheet/web/handlers/admin"
	"piecework.app/piecework/timesheet/web/handlers/approvals"
	"piecework.app/piecework/timesheet/web/handlers/auth"
	"piecework.app/piecework/timesheet/web/handlers/processes"
	"piecework.app/piecework/timesheet/web/handlers/recyclebin"
	"piecework.app/piecework/timesheet/web/handlers/timesheets"
	web "piecework.app/piecework/web/common"
	"piecework.app/piecework/web/middlewares"
)

const apiPrefix = "/api/v1"

// newRouter builds the HTTP surface. With problems set, or without
// services, every API route except ping answers 503.
func newRouter(h *common.Handler, staticDir string, problems []string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.RequestID(), middlewares.Logger(logger), middlewares.Recovery(logger))

	degraded := len(problems) > 0 || h == nil
	api := r.Group(apiPrefix)
	api.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":  "pong",
			"degraded": degraded,
			"problems": problems,
		})
	})

	if !degraded {
		auth.RegisterPublic(api, *h)

		protected := api.Group("")
		protected.Use(middlewares.Authentication[core.Actor](h.Services.Auth))
		{
			auth.Register(protected, *h)
			timesheets.Register(protected, *h)
			approvals.Register(protected, *h)
			processes.Register(protected, *h)
			recyclebin.Register(protected, *h)
			admin.Register(protected, *h)
		}
	}

	index := filepath.Join(staticDir, "index.html")
	r.Static("/assets", filepath.Join(staticDir, "assets"))

	unavailable := middlewares.Degraded(problems)
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			if degraded {
				unavailable(c)
				return
			}
			c.JSON(http.StatusNotFound, web.NewErrorResponse("not found"))
			return
		}
		if _, err := os.Stat(index); err != nil {
			c.JSON(http.StatusNotFound, web.NewErrorResponse("not found"))
			return
		}
		c.File(index)
	})

	return r
}
