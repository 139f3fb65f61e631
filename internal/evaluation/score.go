package evaluation

import (
	"fmt"
	"math"
	"strconv"
)

// AggregateScores returns the mean of scores truncated toward zero at two
// decimal places, computed as trunc(sum*100/n)/100. It returns nil for an
// empty set; an unrated record has no aggregate, not a zero one.
func AggregateScores(scores []float64) *float64 {
	if len(scores) == 0 {
		return nil
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	v := math.Trunc(sum*100/float64(len(scores))) / 100
	return &v
}

// RoundSignificant rounds v to four significant digits, the precision
// metric scores are stored with.
func RoundSignificant(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite metric value %v", v)
	}
	return strconv.ParseFloat(strconv.FormatFloat(v, 'g', 4, 64), 64)
}

// ValidateScore rejects scores that cannot be averaged.
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return &ValidationError{Field: "human_score", Reason: "must be a finite number"}
	}
	return nil
}
