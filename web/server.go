package web

import (
	"net/http"
	"time"

	"calman.com/worklog/web/broker"
	"calman.com/worklog/web/common"
	"calman.com/worklog/web/handlers"
	"calman.com/worklog/web/handlers/events"
	"calman.com/worklog/web/handlers/worklog"
	"calman.com/worklog/web/middlewares"
	"calman.com/worklog/web/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Options struct {
	Repo      repository.Repository
	Events    *broker.Broker
	Logger    *zap.Logger
	KeepAlive time.Duration
}

// NewRouter wires the work log API, the event stream and the excel import.
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Repo == nil {
		opts.Repo = repository.NewMemoryRepository()
	}
	if opts.Events == nil {
		opts.Events = broker.New(broker.DefaultReplaySize, opts.Logger)
	}
	base := common.Handler{Repo: opts.Repo, Events: opts.Events, Logger: opts.Logger}

	r := gin.New()
	r.Use(gin.Recovery(), middlewares.ClientID(), middlewares.Logger(opts.Logger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	handlers.RegisterUpload(&r.RouterGroup, base)

	api := r.Group("/api")
	{
		worklog.Register(api, base)
		events.Register(api, base, opts.KeepAlive)
	}
	return r
}
