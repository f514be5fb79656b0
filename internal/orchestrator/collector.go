package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"aeso-harvester/internal/aeso"
	"aeso-harvester/internal/consolidation"
	"aeso-harvester/internal/demand"
	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/normalization"
	"aeso-harvester/internal/observability"
	"aeso-harvester/internal/storage"
)

// Stage names the pipeline step in which a failure occurred.
type Stage string

const (
	StageSchedule    Stage = "schedule"
	StageFetch       Stage = "fetch"
	StageNormalize   Stage = "normalize"
	StageIdentity    Stage = "identity"
	StageWrite       Stage = "write"
	StagePurge       Stage = "purge"
	StageConsolidate Stage = "consolidate"
	StageTieLine     Stage = "tieline"
	StageJoin        Stage = "join"
)

// Kind classifies a failure.
type Kind string

const (
	KindTransport      Kind = "transport"
	KindSchemaMismatch Kind = "schema_mismatch"
	KindMissingColumn  Kind = "missing_column"
	KindIncompleteData Kind = "incomplete_data"
	KindYearNotFound   Kind = "year_not_found"
	KindMissingInput   Kind = "missing_input"
	KindCancelled      Kind = "cancelled"
	KindUnexpected     Kind = "unexpected"
)

// Decision tells the caller how to proceed after a failure.
type Decision int

const (
	// Continue with the next window or year.
	Continue Decision = iota
	// SkipEndpoint abandons the current endpoint; other endpoints proceed.
	SkipEndpoint
	// Abort stops the run.
	Abort
)

// String returns the string representation of Decision.
func (d Decision) String() string {
	switch d {
	case SkipEndpoint:
		return "skip_endpoint"
	case Abort:
		return "abort"
	default:
		return "continue"
	}
}

// Failure is one recorded failure with its context.
type Failure struct {
	Endpoint string
	Window   string
	Year     int
	Stage    Stage
	Kind     Kind
	Err      error
	At       time.Time
}

func (f Failure) Error() string {
	msg := fmt.Sprintf("%s %s", f.Stage, f.Endpoint)
	if f.Window != "" {
		msg += " [" + f.Window + "]"
	} else if f.Year != 0 {
		msg += fmt.Sprintf(" [%d]", f.Year)
	}
	return fmt.Sprintf("%s (%s): %v", msg, f.Kind, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Classify maps an error onto a failure kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, aeso.ErrTransport):
		// A per-request timeout surfaces as DeadlineExceeded inside the
		// transport error and must not end the run.
		return KindTransport
	case errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, normalization.ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(err, normalization.ErrMissingColumn):
		return KindMissingColumn
	case errors.Is(err, consolidation.ErrIncompleteData):
		return KindIncompleteData
	case errors.Is(err, demand.ErrYearNotFound):
		return KindYearNotFound
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, consolidation.ErrNoPeriods):
		return KindMissingInput
	default:
		return KindUnexpected
	}
}

// Policy returns the decision for a failure kind. Classified failures
// continue, cancellation aborts and anything unexpected skips the
// endpoint.
func Policy(k Kind) Decision {
	switch k {
	case KindCancelled:
		return Abort
	case KindUnexpected:
		return SkipEndpoint
	default:
		return Continue
	}
}

// Collector gathers the failures of one run. It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	failures []Failure
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewCollector creates a collector. logger and metrics may be nil.
func NewCollector(logger *zap.Logger, metrics *observability.Metrics) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger, metrics: metrics, now: time.Now}
}

// Record stores f, classifying it when Kind is empty, and returns the
// policy decision.
func (c *Collector) Record(f Failure) Decision {
	if f.Kind == "" {
		f.Kind = Classify(f.Err)
	}
	if f.At.IsZero() {
		f.At = c.now().UTC()
	}
	decision := Policy(f.Kind)

	c.mu.Lock()
	c.failures = append(c.failures, f)
	c.mu.Unlock()

	fields := []zap.Field{
		zap.String("endpoint", f.Endpoint),
		zap.String("stage", string(f.Stage)),
		zap.String("kind", string(f.Kind)),
		zap.String("decision", decision.String()),
		zap.Error(f.Err),
	}
	if f.Window != "" {
		fields = append(fields, zap.String("window", f.Window))
	}
	if f.Year != 0 {
		fields = append(fields, zap.Int("year", f.Year))
	}
	if f.Kind == KindUnexpected {
		c.logger.Error("unexpected failure", fields...)
	} else {
		c.logger.Warn("failure recorded", fields...)
	}
	c.metrics.RecordFailure(f.Endpoint, string(f.Stage), string(f.Kind))

	return decision
}

// Failures returns a copy of the recorded failures in order.
func (c *Collector) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Failure, len(c.failures))
	copy(out, c.failures)
	return out
}

// Len returns the number of recorded failures.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures)
}

// Records converts the failures into their persisted form.
func (c *Collector) Records(runID string) []*domain.FailureRecord {
	failures := c.Failures()
	out := make([]*domain.FailureRecord, len(failures))
	for i, f := range failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		out[i] = &domain.FailureRecord{
			RunID:      runID,
			Endpoint:   f.Endpoint,
			Stage:      string(f.Stage),
			Kind:       string(f.Kind),
			Window:     f.Window,
			Year:       f.Year,
			Message:    msg,
			RecordedAt: f.At,
		}
	}
	return out
}
