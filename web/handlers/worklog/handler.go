package worklog

import (
	"errors"
	"net/http"
	"time"

	apicommon "calman.com/worklog/calman/v1/common"
	"calman.com/worklog/calman/v1/common/status"
	"calman.com/worklog/model"
	"calman.com/worklog/utils"
	"calman.com/worklog/web/common"
	"calman.com/worklog/web/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Endpoint struct {
	base common.Handler
	now  func() time.Time
}

func Register(r *gin.RouterGroup, base common.Handler) {
	endpoint := &Endpoint{base: base, now: time.Now}
	g := r.Group("/worklogs")
	g.GET("", endpoint.List)
	g.GET("/date/:date", endpoint.ListByDate)
	g.GET("/:id", endpoint.Get)
	g.POST("", endpoint.Create)
	g.PUT("/:id", endpoint.Update)
	g.PUT("/:id/status", endpoint.UpdateStatus)
	g.DELETE("/:id", endpoint.Delete)
}

type ListParamsDTO struct {
	SortField     string `form:"sortField"`
	SortDirection string `form:"sortDirection"`
	Status        string `form:"status"`
	Page          int    `form:"page" validate:"gte=0"`
	Size          *int   `form:"size" validate:"omitempty,gte=1,lte=500"`
}

func (p ListParamsDTO) query() (repository.Query, error) {
	var q repository.Query
	var err error
	if q.SortField, err = apicommon.ParseSortField(p.SortField); err != nil {
		return q, err
	}
	if q.Direction, err = apicommon.ParseDirection(p.SortDirection); err != nil {
		return q, err
	}
	if q.Status, err = status.Parse(p.Status); err != nil {
		return q, err
	}
	if p.Size != nil {
		q.Limit = *p.Size
		q.Offset = p.Page * *p.Size
	}
	return q, nil
}

func (ep *Endpoint) List(c *gin.Context) {
	var params ListParamsDTO
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	q, err := params.query()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error()))
		return
	}
	ep.find(c, q, params)
}

// ListByDate accepts "YYYY-MM-DD" or "YY.MM.DD".
func (ep *Endpoint) ListByDate(c *gin.Context) {
	date, err := common.ParseDateOnly(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error()))
		return
	}

	var params ListParamsDTO
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	q, err := params.query()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error()))
		return
	}
	from, to := date.Range()
	q.From, q.To = &from, &to
	ep.find(c, q, params)
}

// find answers with a bare array, or with the page envelope when a size was given.
func (ep *Endpoint) find(c *gin.Context, q repository.Query, params ListParamsDTO) {
	rows, total, err := ep.base.Repo.Find(c.Request.Context(), q)
	if err != nil {
		ep.internalError(c, "find work logs", err)
		return
	}

	items := common.NewWorkLogResponses(rows)
	if params.Size == nil {
		c.JSON(http.StatusOK, items)
		return
	}
	c.JSON(http.StatusOK, common.NewPageResponse(items, total, params.Page, *params.Size))
}

func (ep *Endpoint) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	e, err := ep.base.Repo.Get(c.Request.Context(), id)
	if err != nil {
		ep.repoError(c, "get work log", err)
		return
	}
	c.JSON(http.StatusOK, common.NewWorkLogResponse(*e))
}

func (ep *Endpoint) Create(c *gin.Context) {
	var req model.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	e, err := repository.NewEntity(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error()))
		return
	}
	if err := ep.base.Repo.Create(c.Request.Context(), e); err != nil {
		ep.internalError(c, "create work log", err)
		return
	}

	ep.base.Events.PublishCreated(common.NewWorkLogResponse(*e))
	c.JSON(http.StatusOK, common.NewCreatedResponse(e.ID))
}

// Update answers with the stored record so callers can apply it without a refetch.
func (ep *Endpoint) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}

	var req model.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	e, err := repository.NewEntity(model.CreateRequest(req))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error()))
		return
	}
	e.ID = id
	if err := ep.base.Repo.Update(c.Request.Context(), e); err != nil {
		ep.repoError(c, "update work log", err)
		return
	}

	res := common.NewWorkLogResponse(*e)
	ep.base.Events.PublishUpdated(res)
	c.JSON(http.StatusOK, res)
}

func (ep *Endpoint) UpdateStatus(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}

	var req model.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	var completedAt *time.Time
	var completedBy *string
	if req.Completed {
		completedAt = utils.Ptr(ep.now().Truncate(time.Second))
		completedBy = common.ClientID(c)
	}

	e, err := ep.base.Repo.SetStatus(c.Request.Context(), id, completedAt, completedBy)
	if err != nil {
		ep.repoError(c, "update work log status", err)
		return
	}

	res := apicommon.StatusAPIResponse{
		Message:     utils.FormatBoolean(req.Completed, "Work log marked as completed", "Work log marked as incomplete"),
		Completed:   req.Completed,
		CompletedBy: e.CompletedBy,
	}
	if e.CompletedAt != nil {
		res.CompletedAt = utils.Ptr(utils.FormatISODateTime(*e.CompletedAt))
	}

	ep.base.Events.PublishUpdated(common.NewWorkLogResponse(*e))
	c.JSON(http.StatusOK, res)
}

func (ep *Endpoint) Delete(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	if err := ep.base.Repo.Delete(c.Request.Context(), id); err != nil {
		ep.repoError(c, "delete work log", err)
		return
	}

	ep.base.Events.PublishDeleted(id)
	c.Status(http.StatusNoContent)
}

func (ep *Endpoint) repoError(c *gin.Context, op string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, common.NewErrorResponse("Work log not found"))
		return
	}
	ep.internalError(c, op, err)
}

func (ep *Endpoint) internalError(c *gin.Context, op string, err error) {
	ep.base.Logger.Error(op, zap.Error(err))
	c.JSON(http.StatusInternalServerError, common.NewErrorResponse(err.Error()))
}
