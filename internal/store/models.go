package store

import (
	"strings"
	"time"

	"strata/internal/tier"
)

// TaskStatus represents the lifecycle of a migration task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

var allStatuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted, StatusFailed}

var statusSet = func() map[TaskStatus]struct{} {
	set := make(map[TaskStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known task statuses.
func AllStatuses() []TaskStatus {
	cp := make([]TaskStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known TaskStatus.
func ParseStatus(value string) (TaskStatus, bool) {
	normalized := TaskStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status permits no further transitions.
// A failed task with retries remaining is re-queued by the orchestrator,
// so failed alone is not terminal; see Task.Terminal.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DataObject is a stored object whose placement the engine manages.
type DataObject struct {
	ID          int64
	Name        string
	SizeBytes   int64
	CurrentTier tier.Tier
	Location    string
	AccessCount int64
	MonthlyCost float64
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SizeGB converts the object size into the GB units pricing operates on.
func (o *DataObject) SizeGB() float64 {
	return float64(o.SizeBytes) / (1024 * 1024 * 1024)
}

// AccessKind distinguishes read and write access events.
type AccessKind string

const (
	AccessRead  AccessKind = "read"
	AccessWrite AccessKind = "write"
)

// AccessEvent is one recorded access to a data object. Append-only.
type AccessEvent struct {
	ID         int64
	ObjectID   int64
	Kind       AccessKind
	LatencyMS  float64
	AccessedAt time.Time
}

// Task is a migration task persisted in SQLite. Owned exclusively by the
// orchestrator from claim until terminal.
type Task struct {
	ID              int64
	ObjectID        int64
	SourceTier      tier.Tier
	TargetTier      tier.Tier
	SourceLocation  string
	TargetLocation  string
	Status          TaskStatus
	ProgressPercent float64
	TotalBytes      int64
	RetryCount      int
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// Active reports whether the task still occupies the queue.
func (t *Task) Active() bool {
	return t.Status == StatusPending || t.Status == StatusInProgress
}

// Terminal reports whether the task can never run again given maxRetries.
func (t *Task) Terminal(maxRetries int) bool {
	if t.Status == StatusCompleted {
		return true
	}
	return t.Status == StatusFailed && t.RetryCount >= maxRetries
}

// Prediction is a persisted tier prediction. Immutable once written.
type Prediction struct {
	ID             int64
	ObjectID       int64
	PredictedTier  tier.Tier
	ConfidenceHot  float64
	ConfidenceWarm float64
	ConfidenceCold float64
	ModelVersion   string
	Reasoning      string
	PredictedAt    time.Time
}

// Confidence returns the confidence for the given tier.
func (p *Prediction) Confidence(t tier.Tier) float64 {
	switch t {
	case tier.Hot:
		return p.ConfidenceHot
	case tier.Warm:
		return p.ConfidenceWarm
	case tier.Cold:
		return p.ConfidenceCold
	default:
		return 0
	}
}

// ConsistencyRecord tracks checksum and replica bookkeeping for an object.
type ConsistencyRecord struct {
	ObjectID    int64
	Checksum    string
	Replicas    []string
	MinReplicas int
	VerifiedAt  time.Time
}

// QueueSummary describes aggregated task counts per lifecycle state.
type QueueSummary struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Failed     int
}
