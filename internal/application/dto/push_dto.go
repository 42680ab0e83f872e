package dto

import (
	"github.com/turtacn/pushgate/internal/domain/models"
)

// PushRequest 单条推送请求 DTO
type PushRequest struct {
	DeviceToken   string  `json:"device_token" validate:"required,max=200,recipient"`
	Title         string  `json:"title" validate:"required,max=256"`
	Body          string  `json:"body" validate:"required,max=1024"`
	Badge         *int    `json:"badge" validate:"omitempty,min=0"`
	Sound         *string `json:"sound" validate:"omitempty,max=64"`
	CustomPayload *string `json:"custom_payload" validate:"omitempty,max=2048"`
	ServerType    string  `json:"server_type"`
}

// ToNotification converts the request into a notification intent.
func (r *PushRequest) ToNotification() models.Notification {
	n := models.Notification{
		Recipient:   r.DeviceToken,
		Title:       r.Title,
		Body:        r.Body,
		Badge:       r.Badge,
		Sound:       r.Sound,
		Environment: models.ParseEnvironment(r.ServerType),
	}
	if r.CustomPayload != nil {
		n.PayloadFragment = *r.CustomPayload
	}
	return n
}

// BlastRequest 广播推送请求 DTO
type BlastRequest struct {
	Title         string  `json:"title" validate:"required,max=256"`
	Body          string  `json:"body" validate:"required,max=1024"`
	Badge         *int    `json:"badge" validate:"omitempty,min=0"`
	Sound         *string `json:"sound" validate:"omitempty,max=64"`
	CustomPayload *string `json:"custom_payload" validate:"omitempty,max=2048"`
	ServerType    string  `json:"server_type"`
}

// Environment returns the target environment of the broadcast.
func (r *BlastRequest) Environment() models.Environment {
	return models.ParseEnvironment(r.ServerType)
}

// ToContent converts the request into recipient-independent content.
func (r *BlastRequest) ToContent() models.Content {
	c := models.Content{
		Title: r.Title,
		Body:  r.Body,
		Badge: r.Badge,
		Sound: r.Sound,
	}
	if r.CustomPayload != nil {
		c.PayloadFragment = *r.CustomPayload
	}
	return c
}
