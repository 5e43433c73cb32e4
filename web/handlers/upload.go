package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apicommon "calman.com/worklog/calman/v1/common"
	"calman.com/worklog/model"
	"calman.com/worklog/web/common"
	"calman.com/worklog/web/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxUploadSize = 50 << 20

type UploadEndpoint struct {
	base common.Handler
	now  func() time.Time
}

func RegisterUpload(r *gin.RouterGroup, base common.Handler) {
	endpoint := &UploadEndpoint{base: base, now: time.Now}
	r.POST("/excel/upload", endpoint.Upload)
}

func failedUpload(c *gin.Context, code int, message string) {
	c.JSON(code, apicommon.UploadResponse{Success: false, Message: message})
}

// Upload imports a production plan workbook. Each positive quantity cell becomes
// one work log; per cell failures are reported without aborting the import.
func (ep *UploadEndpoint) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	carModel := strings.TrimSpace(c.PostForm("carModel"))
	header, err := c.FormFile("file")
	if err != nil || header.Size == 0 {
		failedUpload(c, http.StatusBadRequest, "No file was uploaded")
		return
	}
	if carModel == "" {
		failedUpload(c, http.StatusBadRequest, "Field 'carModel' is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		failedUpload(c, http.StatusInternalServerError, fmt.Sprintf("Failed to process file: %v", err))
		return
	}
	defer file.Close()

	ep.base.Logger.Info("excel upload started",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("carModel", carModel),
	)

	plan, err := ReadPlan(file, carModel, ep.now())
	if errors.Is(err, ErrMissingSheets) {
		failedUpload(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		failedUpload(c, http.StatusInternalServerError, fmt.Sprintf("Failed to process file: %v", err))
		return
	}

	ctx := c.Request.Context()
	processed := 0
	problems := plan.Errors
	for _, entry := range plan.Entries {
		if err := model.Validate(entry.Request); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", entry.Cell, model.DescribeValidation(err)))
			continue
		}
		e, err := repository.NewEntity(entry.Request)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", entry.Cell, err))
			continue
		}
		if err := ep.base.Repo.Create(ctx, e); err != nil {
			ep.base.Logger.Error("excel row not saved", zap.String("cell", entry.Cell), zap.Error(err))
			problems = append(problems, fmt.Sprintf("%s: failed to save", entry.Cell))
			continue
		}
		ep.base.Events.PublishCreated(common.NewWorkLogResponse(*e))
		processed++
	}

	ep.base.Logger.Info("excel upload finished",
		zap.Int("processed", processed),
		zap.Int("errors", len(problems)),
	)

	c.JSON(http.StatusOK, apicommon.UploadResponse{
		Success:        true,
		Message:        fmt.Sprintf("%d items processed successfully", processed),
		TotalProcessed: processed,
		Errors:         problems,
	})
}
