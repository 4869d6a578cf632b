/**
 * Verification verdict
 *
 * The verdict combines three independent scores through a fixed,
 * top-down rule table. Rules are evaluated in order and the first
 * matching rule wins, so the table is unambiguous for any score
 * combination. Face match is the primary gate: no amount of OCR
 * quality rescues a failed face comparison.
 */

package verify

// Verdict is the final tri-state outcome of a verification job.
type Verdict string

const (
	VerdictVerified    Verdict = "VERIFIED"
	VerdictRejected    Verdict = "REJECTED"
	VerdictNeedsReview Verdict = "NEEDS_REVIEW"
)

// Thresholds are the decision boundaries, fixed per deployment.
type Thresholds struct {
	SimThreshold      float64
	LivenessThreshold float64
	LivenessEnabled   bool
	OCRMinScore       float64
}

// DefaultThresholds returns the production decision boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SimThreshold:      0.6,
		LivenessThreshold: 0.7,
		LivenessEnabled:   true,
		OCRMinScore:       60.0,
	}
}

// Scores are the three inputs to the decision table.
type Scores struct {
	Similarity      float64 `json:"similarity"`
	LivenessScore   float64 `json:"livenessScore"`
	ExtractionScore float64 `json:"extractionScore"`
}

// Decision is a verdict with the signals that produced it.
type Decision struct {
	Verdict        Verdict `json:"verdict"`
	Rule           string  `json:"rule"`
	FaceMatch      bool    `json:"faceMatch"`
	LivenessPassed bool    `json:"livenessPassed"`
	OCROk          bool    `json:"ocrOk"`
	Scores         Scores  `json:"scores"`
}

// Decide applies the rule table to the three scores. When liveness
// checking is disabled the liveness gate is treated as passed and only
// face match and OCR quality drive the verdict.
func Decide(s Scores, t Thresholds) Decision {
	faceMatch := s.Similarity >= t.SimThreshold
	livenessPassed := !t.LivenessEnabled || s.LivenessScore >= t.LivenessThreshold
	ocrOk := s.ExtractionScore >= t.OCRMinScore

	d := Decision{
		FaceMatch:      faceMatch,
		LivenessPassed: livenessPassed,
		OCROk:          ocrOk,
		Scores:         s,
	}

	switch {
	case !faceMatch:
		d.Verdict = VerdictRejected
		d.Rule = "face_mismatch"
	case !livenessPassed:
		d.Verdict = VerdictRejected
		d.Rule = "liveness_failed"
	case !ocrOk:
		d.Verdict = VerdictNeedsReview
		d.Rule = "low_extraction_score"
	default:
		d.Verdict = VerdictVerified
		d.Rule = "all_checks_passed"
	}
	return d
}
