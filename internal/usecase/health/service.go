package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; search still works without the
	// embedding provider as long as the index answers.
	Degraded Status = "degraded"
	// Unhealthy indicates the index is down, so no search can be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index     IndexPinger
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(index IndexPinger, embedding EmbeddingChecker) *Service {
	return &Service{index: index, embedding: embedding}
}

// Check runs health checks against all components. An unreachable index is
// Unhealthy; an unreachable embedding provider alone is Degraded, since
// cached queries and stored-vector lookups keep working.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	indexUp := s.index.Ping(ctx) == nil
	if indexUp {
		checks["index"] = CheckOK
	} else {
		checks["index"] = CheckError
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	if !indexUp {
		status = Unhealthy
	} else if checks["embedding"] == CheckError {
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
