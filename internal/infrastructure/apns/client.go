package apns

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/internal/domain/service"
	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/logger"
)

// Config holds the per-request identifiers and the polling bounds.
type Config struct {
	BundleID     string
	MaxRounds    int
	PollInterval time.Duration
}

// Client performs one gateway exchange per Send.
// Client is not safe for concurrent use; the credential provider it wraps
// is shared state.
type Client struct {
	cfg       Config
	creds     service.CredentialProvider
	transport Transport
	logger    logger.Logger
	metrics   service.Metrics
	tracer    trace.Tracer
	sleep     func(ctx context.Context, d time.Duration) bool
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithClientMetrics attaches a metrics sink.
func WithClientMetrics(m service.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a protocol client.
func NewClient(cfg Config, creds service.CredentialProvider, transport Transport, log logger.Logger, opts ...ClientOption) *Client {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = constants.PollMaxRounds
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.PollInterval
	}
	c := &Client{
		cfg:       cfg,
		creds:     creds,
		transport: transport,
		logger:    log.WithComponent("apns_client"),
		metrics:   service.NewNoopMetrics(),
		tracer:    otel.Tracer("pushgate/apns"),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HostFor returns the gateway host of env.
func HostFor(env models.Environment) string {
	if env == models.EnvironmentProduction {
		return constants.APNsHostProduction
	}
	return constants.APNsHostSandbox
}

// Send performs exactly one exchange for n. Signing and connection failures
// are returned as errors; everything the gateway says, or fails to say in
// time, is returned as an outcome.
func (c *Client) Send(ctx context.Context, n models.Notification) (models.SendOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "apns.Send", trace.WithAttributes(
		attribute.String("environment", n.Environment.String()),
	))
	defer span.End()

	start := time.Now()
	outcome, err := c.send(ctx, n)

	result := string(outcome.Kind)
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("outcome", result))
	}
	c.metrics.RecordSend(n.Environment, result, time.Since(start))
	return outcome, err
}

func (c *Client) send(ctx context.Context, n models.Notification) (models.SendOutcome, error) {
	cred, err := c.creds.EnsureValid(ctx)
	if err != nil {
		return models.SendOutcome{}, err
	}

	body, err := BuildPayload(n)
	if err != nil {
		return models.SendOutcome{}, err
	}

	host := HostFor(n.Environment)
	conn, err := c.transport.Dial(ctx, host)
	if err != nil {
		c.logger.Error(ctx, "gateway connection failed", err, logger.String("host", host))
		return models.SendOutcome{}, err
	}
	defer conn.Close()

	header := http.Header{}
	header.Set(constants.HeaderAuthorization, constants.BearerPrefix+cred.Token)
	header.Set(constants.HeaderAPNsTopic, c.cfg.BundleID)
	header.Set(constants.HeaderAPNsPushType, constants.APNsPushTypeAlert)
	header.Set(constants.HeaderContentType, constants.ContentTypeJSON)

	stream, err := conn.Submit(ctx, &Request{
		Host:   host,
		Path:   constants.APNsDevicePathPrefix + n.Recipient,
		Header: header,
		Body:   body,
	})
	if err != nil {
		c.logger.Error(ctx, "request submission failed", err, logger.String("host", host))
		return models.SendOutcome{}, err
	}

	done, resp := c.poll(ctx, stream)
	outcome := Classify(done, resp)
	c.logOutcome(ctx, n, outcome)
	return outcome, nil
}

// poll drives the stream for at most MaxRounds rounds.
func (c *Client) poll(ctx context.Context, stream Stream) (bool, []byte) {
	for round := 0; round < c.cfg.MaxRounds; round++ {
		done, body, err := stream.Poll()
		if err != nil {
			c.logger.Warn(ctx, "stream failed before completion", logger.Err(err), logger.Int("round", round))
			return false, nil
		}
		if done {
			return true, body
		}
		if !c.sleep(ctx, c.cfg.PollInterval) {
			return false, nil
		}
	}
	return false, nil
}

// Classify maps a polled exchange to its outcome: no completion is a
// timeout, an empty body is success, a body naming the unregistered reason
// is UnregisteredRecipient and any other body is a protocol error.
func Classify(done bool, body []byte) models.SendOutcome {
	switch {
	case !done:
		return models.SendOutcome{Kind: models.OutcomeTimeout}
	case len(body) == 0:
		return models.SendOutcome{Kind: models.OutcomeOK}
	case strings.Contains(string(body), constants.APNsUnregisteredMarker):
		return models.SendOutcome{Kind: models.OutcomeUnregisteredRecipient, Body: string(body)}
	default:
		return models.SendOutcome{Kind: models.OutcomeProtocolError, Body: string(body)}
	}
}

func (c *Client) logOutcome(ctx context.Context, n models.Notification, o models.SendOutcome) {
	fields := []logger.Field{
		logger.String("environment", n.Environment.String()),
		logger.String("outcome", string(o.Kind)),
	}
	switch o.Kind {
	case models.OutcomeOK:
		c.logger.Info(ctx, "notification accepted", fields...)
	case models.OutcomeTimeout:
		c.logger.Warn(ctx, "timed out waiting for gateway response", fields...)
	default:
		c.logger.Warn(ctx, "gateway rejected notification", append(fields, logger.String("response", o.Body))...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
