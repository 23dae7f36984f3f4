package stats

import (
	"time"

	"book_harvester/internal/domain"
)

const (
	staleAfter    = 48 * time.Hour
	errorWarnOver = 5
)

// Derive computes a source's health from its stats. Health is never stored;
// it is recomputed on every read.
//
// Rules, checked in order:
//   - last run failed entirely: failed
//   - never ran, or last run older than 48h: warning
//   - more than 5 errors in the trailing 24h window: warning
//   - otherwise: healthy
func Derive(s domain.SourceStats, now time.Time) domain.HealthStatus {
	if s.LastRunStatus == domain.RunFailed {
		return domain.HealthFailed
	}
	if s.LastRunAt == nil || now.Sub(*s.LastRunAt) > staleAfter {
		return domain.HealthWarning
	}
	if s.ErrorCount24h > errorWarnOver {
		return domain.HealthWarning
	}
	return domain.HealthHealthy
}
