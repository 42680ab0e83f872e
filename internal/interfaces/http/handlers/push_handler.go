package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/pushgate/internal/application/dto"
	appsvc "github.com/turtacn/pushgate/internal/application/service"
	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
	"github.com/turtacn/pushgate/pkg/utils"
)

// Dispatcher is the part of the dispatch coordinator the push endpoints use.
type Dispatcher interface {
	DispatchSingle(ctx context.Context, n models.Notification) (appsvc.Ack, error)
	DispatchBroadcast(ctx context.Context, env models.Environment, content models.Content) (appsvc.Ack, error)
	JobStatus(id string) (appsvc.JobStatus, bool)
}

// PushHandler 推送 HTTP 处理器
type PushHandler struct {
	dispatcher Dispatcher
	logger     logger.Logger
}

// NewPushHandler 创建推送处理器
func NewPushHandler(dispatcher Dispatcher, log logger.Logger) *PushHandler {
	return &PushHandler{
		dispatcher: dispatcher,
		logger:     log.WithComponent("push_handler"),
	}
}

// Push queues one notification and answers before it is sent.
// POST /push
func (h *PushHandler) Push(c *gin.Context) {
	var req dto.PushRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	n := req.ToNotification()
	ack, err := h.dispatcher.DispatchSingle(c.Request.Context(), n)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "push queued",
		logger.String("job_id", ack.JobID),
		logger.String("recipient", utils.MaskToken(n.Recipient)),
		logger.String("environment", n.Environment.String()),
	)
	dto.SendSuccess(c, http.StatusAccepted, ack)
}

// Blast queues a broadcast to every send-list recipient of one environment.
// POST /blast
func (h *PushHandler) Blast(c *gin.Context) {
	var req dto.BlastRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	env := req.Environment()
	ack, err := h.dispatcher.DispatchBroadcast(c.Request.Context(), env, req.ToContent())
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "broadcast queued",
		logger.String("job_id", ack.JobID),
		logger.String("environment", env.String()),
	)
	dto.SendSuccess(c, http.StatusAccepted, ack)
}

// JobStatus 查询推送任务状态
// GET /blast/:id
func (h *PushHandler) JobStatus(c *gin.Context) {
	id := c.Param("id")
	job, ok := h.dispatcher.JobStatus(id)
	if !ok {
		dto.SendError(c, errors.ErrRegistryNotFound.WithMessage("unknown job").WithMetadata("job_id", id))
		return
	}
	dto.SendSuccess(c, http.StatusOK, job)
}

func (h *PushHandler) fail(c *gin.Context, err error) {
	if errors.ShouldLogError(err) {
		h.logger.Error(c.Request.Context(), "dispatch request failed", err)
	}
	dto.SendError(c, err)
}
