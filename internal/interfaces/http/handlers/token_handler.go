package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/pushgate/internal/application/dto"
	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/internal/domain/service"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
	"github.com/turtacn/pushgate/pkg/utils"
)

// TokenHandler 令牌注册表 HTTP 处理器
type TokenHandler struct {
	registry service.TokenRegistry
	logger   logger.Logger
}

// NewTokenHandler 创建令牌注册表处理器
func NewTokenHandler(registry service.TokenRegistry, log logger.Logger) *TokenHandler {
	return &TokenHandler{
		registry: registry,
		logger:   log.WithComponent("token_handler"),
	}
}

// Register 注册接收方令牌
// POST /token
func (h *TokenHandler) Register(c *gin.Context) {
	var req dto.RegisterTokenRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "register", err)
		return
	}

	key := req.IP
	if key == "" {
		key = c.ClientIP()
	}
	env := models.ParseEnvironment(req.ServerType)

	res, err := h.registry.Register(c.Request.Context(), env, key, req.Token)
	if err != nil {
		h.fail(c, "register", err)
		return
	}

	h.logger.Info(c.Request.Context(), "token registration handled",
		logger.String("key", key),
		logger.String("environment", env.String()),
		logger.String("token", utils.MaskToken(req.Token)),
		logger.String("status", string(res.Status)),
		logger.String("reason", string(res.Reason)),
	)

	dto.SendSuccess(c, http.StatusOK, dto.RegisterTokenResponse{
		Status:     res.Status,
		Reason:     res.Reason,
		IP:         key,
		ServerType: env,
	})
}

// ListAllow 枚举发送列表
// GET /tokens/send?server_type=
func (h *TokenHandler) ListAllow(c *gin.Context) { h.list(c, models.ListAllow) }

// ListDeny 枚举拒绝列表
// GET /tokens/block?server_type=
func (h *TokenHandler) ListDeny(c *gin.Context) { h.list(c, models.ListDeny) }

// DeleteAllow removes an identity from the send list of both environments.
// DELETE /tokens/send
func (h *TokenHandler) DeleteAllow(c *gin.Context) { h.deleteByKey(c, models.ListAllow) }

// DeleteDeny removes an identity from the block list of both environments.
// DELETE /tokens/block
func (h *TokenHandler) DeleteDeny(c *gin.Context) { h.deleteByKey(c, models.ListDeny) }

// Block writes an identity straight into the deny list.
// POST /tokens/block
func (h *TokenHandler) Block(c *gin.Context) {
	var req dto.BlockTokenRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "block", err)
		return
	}
	if err := h.registry.SetDeny(c.Request.Context(), environmentField(req.ServerType), req.IP, req.Token); err != nil {
		h.fail(c, "block", err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.OK)
}

// MoveToDeny 将身份从发送列表移入拒绝列表
// POST /tokens/move-to-block
func (h *TokenHandler) MoveToDeny(c *gin.Context) {
	h.move(c, "move_to_deny", h.registry.MoveToDeny)
}

// MoveToAllow 将身份从拒绝列表移回发送列表
// POST /tokens/move-to-send
func (h *TokenHandler) MoveToAllow(c *gin.Context) {
	h.move(c, "move_to_allow", h.registry.MoveToAllow)
}

func (h *TokenHandler) list(c *gin.Context, list models.ListKind) {
	res, err := h.registry.Enumerate(c.Request.Context(), list, environmentQuery(c))
	if err != nil {
		h.fail(c, "list", err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewTokenListResponse(res))
}

func (h *TokenHandler) deleteByKey(c *gin.Context, list models.ListKind) {
	var req dto.KeyRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "delete", err)
		return
	}
	if err := h.registry.DeleteByKey(c.Request.Context(), list, req.IP); err != nil {
		h.fail(c, "delete", err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.OK)
}

func (h *TokenHandler) move(c *gin.Context, op string, fn func(ctx context.Context, key string) error) {
	var req dto.KeyRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, op, err)
		return
	}
	if err := fn(c.Request.Context(), req.IP); err != nil {
		h.fail(c, op, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.OK)
}

// fail logs server-side failures and writes the error response.
func (h *TokenHandler) fail(c *gin.Context, op string, err error) {
	if errors.ShouldLogError(err) {
		h.logger.Error(c.Request.Context(), "registry request failed", err, logger.String("op", op))
	} else {
		h.logger.Debug(c.Request.Context(), "registry request rejected", logger.String("op", op), logger.Err(err))
	}
	dto.SendError(c, err)
}
