package evaluation

import "fmt"

// Thresholds are the minimum averages a run must reach to pass
type Thresholds struct {
	MinRecall float64
	MinMRR    float64

	// MaxFailed is the number of golden queries allowed to error
	MaxFailed int
}

// Check returns one message per threshold the summary misses
func (t Thresholds) Check(s *EvalSummary) []string {
	var violations []string
	if s.AvgRecallAtK < t.MinRecall {
		violations = append(violations, fmt.Sprintf("recall@%d %.3f below %.3f", s.K, s.AvgRecallAtK, t.MinRecall))
	}
	if s.AvgMRRAtK < t.MinMRR {
		violations = append(violations, fmt.Sprintf("mrr@%d %.3f below %.3f", s.K, s.AvgMRRAtK, t.MinMRR))
	}
	if s.FailedQueries > t.MaxFailed {
		violations = append(violations, fmt.Sprintf("%d queries failed, at most %d allowed", s.FailedQueries, t.MaxFailed))
	}
	return violations
}
