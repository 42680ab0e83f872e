package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/turtacn/pushgate/internal/domain/models"
	domainsvc "github.com/turtacn/pushgate/internal/domain/service"
	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

// DispatcherConfig bounds background work.
type DispatcherConfig struct {
	// TaskBudget is the total weight of units that may be scheduled at once.
	TaskBudget int64

	// BroadcastWeight is the share of the budget one broadcast consumes;
	// a single send always weighs SingleSendWeight.
	BroadcastWeight int64

	// PruneUnregistered removes broadcast recipients the gateway reports as
	// unregistered from the Allow list.
	PruneUnregistered bool

	// JobStatusTTL is how long job snapshots stay queryable.
	JobStatusTTL time.Duration
}

// Ack is the immediate acknowledgment of a dispatch call.
type Ack struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// Dispatcher schedules push work in the background. Every gateway exchange,
// including each recipient of a broadcast, runs under one exclusive lock,
// so at most one push is in flight at any instant. The credential cache is
// only touched under the same lock.
type Dispatcher struct {
	cfg      DispatcherConfig
	sender   domainsvc.PushSender
	creds    domainsvc.CredentialProvider
	registry domainsvc.TokenRegistry
	logger   logger.Logger
	metrics  domainsvc.Metrics
	tracer   trace.Tracer

	sendMu sync.Mutex
	budget *semaphore.Weighted
	jobs   *jobStore
	wg     sync.WaitGroup

	// stop is cancelled by Shutdown once the drain deadline passes.
	stop       context.Context
	cancelStop context.CancelFunc
}

// NewDispatcher creates a Dispatcher. creds may be nil when the caller
// never needs InvalidateCredential.
func NewDispatcher(cfg DispatcherConfig, sender domainsvc.PushSender, creds domainsvc.CredentialProvider,
	registry domainsvc.TokenRegistry, log logger.Logger, metrics domainsvc.Metrics) *Dispatcher {
	if cfg.TaskBudget <= 0 {
		cfg.TaskBudget = constants.DefaultTaskBudget
	}
	if cfg.BroadcastWeight <= 0 {
		cfg.BroadcastWeight = constants.DefaultBroadcastWeight
	}
	if cfg.BroadcastWeight > cfg.TaskBudget {
		cfg.BroadcastWeight = cfg.TaskBudget
	}
	if metrics == nil {
		metrics = domainsvc.NewNoopMetrics()
	}

	stop, cancelStop := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:      cfg,
		sender:   sender,
		creds:    creds,
		registry: registry,
		logger:   log.WithComponent("dispatcher"),
		metrics:  metrics,
		tracer:   otel.Tracer("pushgate/dispatch"),
		budget:   semaphore.NewWeighted(cfg.TaskBudget),
		jobs:     newJobStore(cfg.JobStatusTTL),

		stop:       stop,
		cancelStop: cancelStop,
	}
}

// DispatchSingle schedules one send of n and returns without waiting.
func (d *Dispatcher) DispatchSingle(ctx context.Context, n models.Notification) (Ack, error) {
	if !d.budget.TryAcquire(constants.SingleSendWeight) {
		d.logger.Warn(ctx, "dispatch rejected, task budget exhausted", logger.String("kind", string(JobKindSingle)))
		return Ack{}, errors.ErrTaskBudgetExhausted
	}

	owned := n.Clone()
	job := d.newJob(JobKindSingle, owned.Environment)
	unitCtx, done := d.unitContext(ctx, job.ID)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.budget.Release(constants.SingleSendWeight)
		defer done()
		d.runSingle(unitCtx, job, owned)
	}()

	return Ack{Status: constants.AckStatusQueued, JobID: job.ID}, nil
}

// DispatchBroadcast schedules a sequential send of content to every Allow
// recipient of env and returns without waiting.
func (d *Dispatcher) DispatchBroadcast(ctx context.Context, env models.Environment, content models.Content) (Ack, error) {
	if !d.budget.TryAcquire(d.cfg.BroadcastWeight) {
		d.logger.Warn(ctx, "dispatch rejected, task budget exhausted", logger.String("kind", string(JobKindBroadcast)))
		return Ack{}, errors.ErrTaskBudgetExhausted
	}

	owned := content.Clone()
	job := d.newJob(JobKindBroadcast, env)
	unitCtx, done := d.unitContext(ctx, job.ID)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.budget.Release(d.cfg.BroadcastWeight)
		defer done()
		d.runBroadcast(unitCtx, job, env, owned)
	}()

	return Ack{Status: constants.AckStatusQueued, JobID: job.ID}, nil
}

// JobStatus returns the latest snapshot of a dispatched unit.
func (d *Dispatcher) JobStatus(id string) (JobStatus, bool) {
	return d.jobs.get(id)
}

// InvalidateCredential drops the cached credential under the send lock.
func (d *Dispatcher) InvalidateCredential() {
	if d.creds == nil {
		return
	}
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	d.creds.Invalidate()
}

// Wait blocks until every scheduled unit has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown waits for scheduled units to finish until ctx is done. Units still
// running at that point are cancelled: an in-flight exchange stops polling and
// a broadcast skips its remaining recipients. Shutdown then waits at most
// CancelGrace for them to return and reports ctx's error.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
	}

	d.logger.Warn(ctx, "dispatch drain deadline reached, cancelling running units")
	d.cancelStop()
	select {
	case <-drained:
	case <-time.After(constants.CancelGrace):
		d.logger.Warn(ctx, "dispatch units did not stop after cancellation")
	}
	return ctx.Err()
}

// unitContext detaches a background unit from the request that scheduled it,
// keeping its values, and ties it to Shutdown instead.
func (d *Dispatcher) unitContext(ctx context.Context, jobID string) (context.Context, func()) {
	base := context.WithValue(context.WithoutCancel(ctx), constants.ContextKeyJobID, jobID)
	unitCtx, cancel := context.WithCancel(base)
	stopAfter := context.AfterFunc(d.stop, cancel)
	return unitCtx, func() {
		stopAfter()
		cancel()
	}
}

func (d *Dispatcher) newJob(kind JobKind, env models.Environment) JobStatus {
	job := JobStatus{
		ID:          uuid.NewString(),
		Kind:        kind,
		Environment: env,
		State:       JobStateQueued,
		QueuedAt:    time.Now(),
	}
	d.jobs.put(job)
	return job
}

func (d *Dispatcher) finish(job JobStatus) {
	now := time.Now()
	if job.State != JobStateAbandoned {
		job.State = JobStateDone
	}
	job.FinishedAt = &now
	d.jobs.put(job)
}

// send performs one exchange under the exclusive lock.
func (d *Dispatcher) send(ctx context.Context, n models.Notification) (models.SendOutcome, error) {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	if err := ctx.Err(); err != nil {
		return models.SendOutcome{}, err
	}
	return d.sender.Send(ctx, n)
}

func (d *Dispatcher) runSingle(ctx context.Context, job JobStatus, n models.Notification) {
	ctx, span := d.tracer.Start(ctx, "dispatch.single", trace.WithAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("environment", n.Environment.String()),
	))
	defer span.End()

	job.State = JobStateRunning
	d.jobs.put(job)

	outcome, err := d.send(ctx, n)
	if err != nil {
		span.RecordError(err)
		job.Failed = 1
		job.Error = err.Error()
		d.logger.Error(ctx, "push failed", err,
			logger.String("job_id", job.ID),
			logger.String("environment", n.Environment.String()))
	} else {
		job.Outcome = string(outcome.Kind)
		if outcome.Success() {
			job.OK = 1
		} else {
			job.Failed = 1
		}
		d.logger.Info(ctx, "push finished",
			logger.String("job_id", job.ID),
			logger.String("outcome", string(outcome.Kind)))
	}
	job.Total = 1
	d.finish(job)
}

func (d *Dispatcher) runBroadcast(ctx context.Context, job JobStatus, env models.Environment, content models.Content) {
	ctx, span := d.tracer.Start(ctx, "dispatch.broadcast", trace.WithAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("environment", env.String()),
	))
	defer span.End()

	job.State = JobStateRunning
	d.jobs.put(job)

	listing, err := d.registry.Enumerate(ctx, models.ListAllow, &env)
	if err != nil {
		span.RecordError(err)
		job.Error = err.Error()
		d.logger.Error(ctx, "broadcast could not enumerate recipients", err, logger.String("job_id", job.ID))
		d.finish(job)
		return
	}
	job.Total = len(listing.Records)
	job.Truncated = listing.Truncated
	d.jobs.put(job)

	for i, rec := range listing.Records {
		if ctx.Err() != nil {
			job.State = JobStateAbandoned
			d.logger.Warn(ctx, "broadcast abandoned",
				logger.String("job_id", job.ID),
				logger.Int("sent", i),
				logger.Int("skipped", job.Total-i))
			break
		}
		outcome, err := d.send(ctx, content.For(rec.Token, env))
		fields := []logger.Field{
			logger.String("job_id", job.ID),
			logger.String("key", rec.Key),
			logger.Int("index", i+1),
			logger.Int("total", job.Total),
		}

		switch {
		case err != nil:
			job.Failed++
			d.logger.Error(ctx, "broadcast recipient failed", err, fields...)
		case outcome.Success():
			job.OK++
			d.logger.Debug(ctx, "broadcast recipient delivered", fields...)
		default:
			job.Failed++
			d.logger.Warn(ctx, "broadcast recipient rejected",
				append(fields, logger.String("outcome", string(outcome.Kind)), logger.String("response", outcome.Body))...)
			if outcome.Kind == models.OutcomeUnregisteredRecipient && d.cfg.PruneUnregistered {
				d.prune(ctx, env, rec.Key)
			}
		}
		d.metrics.RecordBroadcastRecipient(err == nil && outcome.Success())
		d.jobs.put(job)
	}

	span.SetAttributes(attribute.Int("ok", job.OK), attribute.Int("failed", job.Failed))
	d.logger.Info(ctx, "broadcast finished",
		logger.String("job_id", job.ID),
		logger.String("environment", env.String()),
		logger.Int("ok", job.OK),
		logger.Int("failed", job.Failed),
		logger.Bool("truncated", job.Truncated))
	d.finish(job)
}

func (d *Dispatcher) prune(ctx context.Context, env models.Environment, key string) {
	if err := d.registry.Delete(ctx, models.ListAllow, env, key); err != nil && !errors.Is(err, errors.ErrRegistryNotFound) {
		d.logger.Error(ctx, "failed to prune unregistered recipient", err, logger.String("key", key))
		return
	}
	d.logger.Info(ctx, "pruned unregistered recipient",
		logger.String("key", key), logger.String("environment", env.String()))
}
