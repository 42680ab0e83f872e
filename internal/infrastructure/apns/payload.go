// Package apns implements the push gateway protocol client: payload
// construction, one HTTP/2 exchange per notification, bounded polling and
// outcome classification.
package apns

import (
	"encoding/json"

	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/pkg/errors"
)

type alert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type aps struct {
	Alert alert   `json:"alert"`
	Badge *int    `json:"badge,omitempty"`
	Sound *string `json:"sound,omitempty"`
}

type payload struct {
	APS aps `json:"aps"`
}

// BuildPayload renders the request body for n. The payload fragment is
// appended verbatim as additional top-level members after "aps".
func BuildPayload(n models.Notification) ([]byte, error) {
	body, err := json.Marshal(payload{APS: aps{
		Alert: alert{Title: n.Title, Body: n.Body},
		Badge: n.Badge,
		Sound: n.Sound,
	}})
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, err, "encode notification payload")
	}
	if n.PayloadFragment == "" {
		return body, nil
	}

	out := make([]byte, 0, len(body)+len(n.PayloadFragment)+1)
	out = append(out, body[:len(body)-1]...)
	out = append(out, ',')
	out = append(out, n.PayloadFragment...)
	out = append(out, '}')
	return out, nil
}
