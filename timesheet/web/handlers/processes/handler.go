package processes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"piecework.app/piecework/timesheet/core"
	common "piecework.app/piecework/timesheet/web/common"
	web "piecework.app/piecework/web/common"
)

// importField is the multipart field carrying the workbook.
const importField = "file"

type Endpoint struct {
	base common.Handler
}

func Register(r *gin.RouterGroup, h common.Handler) {
	endpoint := &Endpoint{base: h}
	r.GET("/processes", endpoint.List)
	r.POST("/processes", endpoint.Create)
	r.POST("/processes/import", common.RequireCapability(core.CapImportProcesses), endpoint.Import)
	r.PUT("/processes/:id", endpoint.Update)
	r.PUT("/processes/:id/active", endpoint.SetActive)
	r.DELETE("/processes/:id", endpoint.Delete)
}

type ActiveDTO struct {
	Active *bool `json:"active" binding:"required"`
}

// ImportRejectedResponse carries the row errors of a rejected import.
type ImportRejectedResponse struct {
	Message string             `json:"message"`
	Code    string             `json:"code"`
	Report  *core.ImportReport `json:"report"`
}

func (ep *Endpoint) List(c *gin.Context) {
	var filter core.ProcessFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	processes, err := ep.base.Services.Processes.List(c.Request.Context(), common.Actor(c), filter)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, processes)
}

func (ep *Endpoint) Create(c *gin.Context) {
	var in core.ProcessInput
	if err := c.ShouldBindJSON(&in); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	p, err := ep.base.Services.Processes.Create(c.Request.Context(), common.Actor(c), in)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.Created(c, p)
}

func (ep *Endpoint) Update(c *gin.Context) {
	var in core.ProcessInput
	if err := c.ShouldBindJSON(&in); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	p, err := ep.base.Services.Processes.Update(c.Request.Context(), common.Actor(c), c.Param("id"), in)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, p)
}

func (ep *Endpoint) SetActive(c *gin.Context) {
	var dto ActiveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		ep.base.BadRequest(c, err)
		return
	}
	p, err := ep.base.Services.Processes.SetActive(c.Request.Context(), common.Actor(c), c.Param("id"), *dto.Active)
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, p)
}

func (ep *Endpoint) Delete(c *gin.Context) {
	result, err := ep.base.Services.RecycleBin.DeleteProcess(c.Request.Context(), common.Actor(c), c.Param("id"))
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, result)
}

// Import loads processes from an uploaded workbook. A rejected file comes
// back as 400 with every row error so the user can fix them in one go.
func (ep *Endpoint) Import(c *gin.Context) {
	imports := ep.base.Services.Imports
	upload, err := web.ReadUpload(c, importField, imports.MaxBytes())
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ValidationResponse{Message: err.Error(), Code: "validation", Field: importField})
		return
	}

	report, err := imports.Import(c.Request.Context(), common.Actor(c), core.ImportFile{
		Name:        upload.Name,
		ContentType: upload.ContentType,
		Data:        upload.Data,
	})
	if errors.Is(err, core.ErrImportRejected) && report != nil {
		c.JSON(http.StatusBadRequest, ImportRejectedResponse{Message: err.Error(), Code: "import_rejected", Report: report})
		return
	}
	if err != nil {
		ep.base.Fail(c, err)
		return
	}
	ep.base.OK(c, report)
}
