package common

import (
	"net/http"
	"strconv"

	"calman.com/worklog/web/broker"
	"calman.com/worklog/web/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler carries what every endpoint needs.
type Handler struct {
	Repo   repository.Repository
	Events *broker.Broker
	Logger *zap.Logger
}

// ParseID reads the :id path parameter. It answers 400 itself and returns false
// when the value is not a positive integer.
func ParseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Invalid id"))
		return 0, false
	}
	return id, true
}

// ClientIDKey is the gin context key holding the caller's X-Client-ID.
const ClientIDKey = "clientID"

// ClientID returns the caller's id, or nil when the request carried none.
func ClientID(c *gin.Context) *string {
	if id := c.GetString(ClientIDKey); id != "" {
		return &id
	}
	return nil
}
