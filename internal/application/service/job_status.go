package service

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/pkg/constants"
)

// JobKind distinguishes the two kinds of background unit.
type JobKind string

const (
	JobKindSingle    JobKind = "single"
	JobKindBroadcast JobKind = "broadcast"
)

// JobState is the lifecycle state of a background unit.
type JobState string

const (
	JobStateQueued  JobState = "queued"
	JobStateRunning JobState = "running"
	JobStateDone    JobState = "done"

	// JobStateAbandoned marks a unit cancelled by Shutdown before it could
	// reach every recipient.
	JobStateAbandoned JobState = "abandoned"
)

// JobStatus is a snapshot of a dispatched unit.
type JobStatus struct {
	ID          string             `json:"id"`
	Kind        JobKind            `json:"kind"`
	Environment models.Environment `json:"environment"`
	State       JobState           `json:"state"`

	// Broadcast counters.
	Total     int  `json:"total"`
	OK        int  `json:"ok"`
	Failed    int  `json:"failed"`
	Truncated bool `json:"truncated,omitempty"`

	// Outcome of a single send, or the reason a broadcast could not enumerate.
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`

	QueuedAt   time.Time  `json:"queued_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// jobStore keeps recent job snapshots for a bounded time.
type jobStore struct {
	c *cache.Cache
}

func newJobStore(ttl time.Duration) *jobStore {
	if ttl <= 0 {
		ttl = constants.JobStatusTTL
	}
	return &jobStore{c: cache.New(ttl, constants.JobStatusCleanupInterval)}
}

func (s *jobStore) put(j JobStatus) {
	s.c.SetDefault(j.ID, j)
}

func (s *jobStore) get(id string) (JobStatus, bool) {
	v, ok := s.c.Get(id)
	if !ok {
		return JobStatus{}, false
	}
	return v.(JobStatus), true
}
