// Package constants defines system-wide constants for the pushgate dispatch engine.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Gateway Constants
// ================================================================================

const (
	// APNsHostProduction is the production push gateway host
	APNsHostProduction = "api.push.apple.com"

	// APNsHostSandbox is the development (sandbox) push gateway host
	APNsHostSandbox = "api.sandbox.push.apple.com"

	// APNsPort is the HTTPS port of the push gateway
	APNsPort = 443

	// APNsDevicePathPrefix is the request path prefix; the recipient token follows it
	APNsDevicePathPrefix = "/3/device/"

	// APNsPushTypeAlert is the fixed value of the apns-push-type header
	APNsPushTypeAlert = "alert"

	// APNsUnregisteredMarker is the reason string returned for a stale device token
	APNsUnregisteredMarker = "Unregistered"

	// APNsMaxResponseBody caps how much of an error body is retained: a
	// 512-byte buffer less its terminator
	APNsMaxResponseBody = 511
)

// Header names sent with every push request.
const (
	HeaderAuthorization = "authorization"
	HeaderAPNsTopic     = "apns-topic"
	HeaderAPNsPushType  = "apns-push-type"
	HeaderContentType   = "content-type"
	ContentTypeJSON     = "application/json"
	BearerPrefix        = "bearer "
)

// ================================================================================
// Credential Constants
// ================================================================================

const (
	// CredentialAlgorithm is the JOSE algorithm identifier of the bearer credential
	CredentialAlgorithm = "ES256"

	// CredentialValidity is how long a generated credential is reused. The gateway
	// rejects tokens older than one hour and throttles refreshes faster than 20 minutes.
	CredentialValidity = 3300 * time.Second

	// SignatureCoordinateLen is the width of each of r and s in the raw signature
	SignatureCoordinateLen = 32

	// SignatureRawLen is the width of the raw r||s signature
	SignatureRawLen = 2 * SignatureCoordinateLen
)

// ================================================================================
// Transport Polling Constants
// ================================================================================

const (
	// PollMaxRounds bounds how many times the response is polled
	PollMaxRounds = 150

	// PollInterval is the delay between two polling rounds
	PollInterval = 100 * time.Millisecond

	// DialTimeout bounds the TLS handshake of a fresh gateway connection
	DialTimeout = 10 * time.Second
)

// ================================================================================
// Registry Constants
// ================================================================================

const (
	// MaxIdentityKeyLen is the longest identity key accepted (an IPv4 string fits)
	MaxIdentityKeyLen = 15

	// MaxTokenLen is the longest recipient token value accepted
	MaxTokenLen = 99

	// MaxEnumerateEntries bounds a single enumeration call
	MaxEnumerateEntries = 64
)

// ================================================================================
// Dispatch Constants
// ================================================================================

const (
	// DefaultTaskBudget is the default weight budget of concurrently scheduled units
	DefaultTaskBudget = 8

	// SingleSendWeight is the budget weight of a single-send unit
	SingleSendWeight = 1

	// DefaultBroadcastWeight is the budget weight of a broadcast unit
	DefaultBroadcastWeight = 4

	// JobStatusTTL is how long broadcast job status is retained
	JobStatusTTL = 1 * time.Hour

	// JobStatusCleanupInterval is the eviction sweep interval of the job status cache
	JobStatusCleanupInterval = 10 * time.Minute

	// CancelGrace is how long Shutdown waits for units to stop once they
	// have been cancelled
	CancelGrace = 5 * time.Second

	// AckStatusQueued is the acknowledgment returned by dispatch calls
	AckStatusQueued = "queued"
)

// ================================================================================
// Registration Outcome Constants
// ================================================================================

// RegisterStatus is the outward status of a registration call
type RegisterStatus string

const (
	// RegisterStatusOK indicates the token was written to the allow list
	RegisterStatusOK RegisterStatus = "ok"

	// RegisterStatusIgnored indicates the call made no change
	RegisterStatusIgnored RegisterStatus = "ignored"
)

// RegisterReason explains an ignored registration
type RegisterReason string

const (
	// RegisterReasonBlocked means the identity is on the deny list
	RegisterReasonBlocked RegisterReason = "blocked"

	// RegisterReasonNoChange means the identical token is already registered
	RegisterReasonNoChange RegisterReason = "no_change"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID is the key for distributed trace ID in context
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeyJobID is the key for the dispatch job ID in context
	ContextKeyJobID ContextKey = "job_id"
)

// ================================================================================
// HTTP Constants
// ================================================================================

const (
	// HeaderRequestID is the header carrying the request ID
	HeaderRequestID = "X-Request-ID"

	// ServiceName is used for tracing and metrics namespaces
	ServiceName = "pushgate"
)
