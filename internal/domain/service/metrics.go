// Package service defines the interfaces for domain services.
package service

import (
	"time"

	"github.com/turtacn/pushgate/internal/domain/models"
)

// Metrics defines the interface for collecting dispatch metrics.
// This abstraction keeps the application layer independent of the monitoring backend (e.g., Prometheus).
// Metrics 定义了收集推送指标的接口。
type Metrics interface {
	// RecordSend records the outcome and latency of one gateway send.
	// RecordSend 记录一次推送的结果和耗时。
	RecordSend(env models.Environment, outcome string, duration time.Duration)

	// RecordCredentialRefresh records a credential generation attempt.
	RecordCredentialRefresh(success bool)

	// RecordRegistryOp records a registry operation and its result.
	RecordRegistryOp(op, result string)

	// RecordBroadcastRecipient records the result for a single broadcast recipient.
	RecordBroadcastRecipient(success bool)
}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordSend(models.Environment, string, time.Duration) {}
func (noopMetrics) RecordCredentialRefresh(bool)                         {}
func (noopMetrics) RecordRegistryOp(string, string)                      {}
func (noopMetrics) RecordBroadcastRecipient(bool)                        {}
