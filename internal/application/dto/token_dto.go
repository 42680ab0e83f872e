package dto

import (
	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/pkg/constants"
)

// RegisterTokenRequest 令牌注册请求 DTO。IP 缺省时使用请求方地址。
type RegisterTokenRequest struct {
	IP         string `json:"ip" validate:"omitempty,identity"`
	Token      string `json:"token" validate:"required,max=99,recipient"`
	ServerType string `json:"server_type"`
}

// BlockTokenRequest 直接写入拒绝列表的请求 DTO。ServerType 缺省时写入两个环境。
type BlockTokenRequest struct {
	IP         string `json:"ip" validate:"required,identity"`
	Token      string `json:"token" validate:"required,max=99,recipient"`
	ServerType string `json:"server_type"`
}

// KeyRequest addresses one identity across both environments (delete, move).
type KeyRequest struct {
	IP string `json:"ip" validate:"required,identity"`
}

// TokenListResponse 列表枚举响应 DTO
type TokenListResponse struct {
	Tokens    []models.TokenRecord `json:"tokens"`
	Count     int                  `json:"count"`
	Truncated bool                 `json:"truncated,omitempty"`
}

// NewTokenListResponse converts an enumeration into its response body.
func NewTokenListResponse(res *models.EnumerateResult) TokenListResponse {
	tokens := res.Records
	if tokens == nil {
		tokens = []models.TokenRecord{}
	}
	return TokenListResponse{
		Tokens:    tokens,
		Count:     len(tokens),
		Truncated: res.Truncated,
	}
}

// RegisterTokenResponse reports what a registration did and for which identity.
type RegisterTokenResponse struct {
	Status     constants.RegisterStatus `json:"status"`
	Reason     constants.RegisterReason `json:"reason,omitempty"`
	IP         string                   `json:"ip"`
	ServerType models.Environment       `json:"server_type"`
}
