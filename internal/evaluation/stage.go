package evaluation

// Stage is the position of a submission form in the generate, score, save
// sequence. It travels with the form so the server never has to guess it
// from which fields happen to be blank.
type Stage string

const (
	StageEmpty            Stage = "empty"
	StageSummaryGenerated Stage = "summary_generated"
	StageMetricsComputed  Stage = "metrics_computed"
	StageSaved            Stage = "saved"
)

// Valid reports whether s is a known stage. The zero value counts as
// StageEmpty.
func (s Stage) Valid() bool {
	switch s {
	case "", StageEmpty, StageSummaryGenerated, StageMetricsComputed, StageSaved:
		return true
	}
	return false
}
