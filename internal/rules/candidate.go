// Package rules holds the pure gap evaluators. Every evaluator maps an
// insurance snapshot plus the threshold tables to zero or more candidate
// findings; none of them touch persistence, the network, or the wall clock.
package rules

import (
	"fmt"
	"sort"

	"github.com/coverpoint/backend/internal/models"
)

// Candidate is an evaluator result before it becomes a persisted Gap. The
// orchestrator stamps id, status, detection time and method.
type Candidate struct {
	GapType          models.GapType
	Severity         models.Severity
	Title            string
	Description      string
	PolicyID         *string
	ProgramID        *string
	CoverageName     *string
	CurrentValue     *string
	RecommendedValue *string
	GapAmount        *float64
}

// SortGaps applies the display ordering contract: severity descending, then
// detected_at descending, then id for a stable tie-break.
func SortGaps(gaps []models.Gap) {
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].Severity.Rank() != gaps[j].Severity.Rank() {
			return gaps[i].Severity.Rank() > gaps[j].Severity.Rank()
		}
		if !gaps[i].DetectedAt.Equal(gaps[j].DetectedAt) {
			return gaps[i].DetectedAt.After(gaps[j].DetectedAt)
		}
		return gaps[i].ID < gaps[j].ID
	})
}

func strPtr(s string) *string { return &s }

func f64Ptr(v float64) *float64 { return &v }

func fmtMoney(v float64) string {
	return fmt.Sprintf("$%.0f", v)
}

func fmtPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
