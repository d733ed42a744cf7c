package substrate

import "context"

// Status is a component health level.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// ComponentHealth is one component's self-reported status.
type ComponentHealth struct {
	Component string         `json:"component"`
	Status    Status         `json:"status"`
	Detail    string         `json:"detail,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
}

// HealthReport aggregates per-component health so a caller can distinguish
// "whole substrate down" from "one layer degraded".
type HealthReport struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
}

// Checker is implemented by components that report their own health.
type Checker interface {
	Health(ctx context.Context) ComponentHealth
}

// Collect runs every checker and rolls the results up into a report.
// The overall status is the worst individual status.
func Collect(ctx context.Context, checkers ...Checker) HealthReport {
	report := HealthReport{Status: StatusHealthy}

	for _, c := range checkers {
		h := c.Health(ctx)
		report.Components = append(report.Components, h)

		if worse(h.Status, report.Status) {
			report.Status = h.Status
		}
	}

	return report
}

func worse(a, b Status) bool {
	return rank(a) > rank(b)
}

func rank(s Status) int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
