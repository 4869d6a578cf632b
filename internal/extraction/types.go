/**
 * Extraction Types - Data model for the multi-pass fusion engine
 *
 * A Pass is one OCR execution on one (variant, mode) pair. Candidates
 * are field values proposed by pattern matches within passes; fusion
 * merges them into per-field results with calibrated confidences.
 */

package extraction

import (
	"fmt"

	"github.com/veridoc/idverify-worker/internal/ocr"
)

// Pass holds the output of one (variant, mode) OCR execution.
// Priority is the static reliability rank of the combination, used only
// for tie-breaking; it never influences scores directly.
type Pass struct {
	Variant  string
	Mode     string
	Text     string
	Tokens   []ocr.Token
	Priority int
	Err      error
}

// Method returns the provenance label for the pass ("variant_mode").
func (p *Pass) Method() string {
	return fmt.Sprintf("%s_%s", p.Variant, p.Mode)
}

// Usable reports whether the pass produced text eligible for candidate
// generation. Failed passes stay in the batch for accounting but are
// skipped here.
func (p *Pass) Usable() bool {
	return p.Err == nil && p.Text != ""
}

// FieldCandidate is one field value proposed by one pattern match in
// one pass, before voting.
type FieldCandidate struct {
	Field        string
	Value        string // normalized, the voting key
	RawValue     string // matched text before normalization
	Confidence   float64
	PatternRank  int
	Variant      string
	Mode         string
	PassPriority int
}

// FieldResult is the fused outcome for one field.
type FieldResult struct {
	Field      string  `json:"field"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"` // winning variant_mode
	Votes      int     `json:"votes"`  // candidates agreeing on the value
}

// ExtractionResult maps field names to fused results. Fields holds at
// most one result per field, in canonical field order regardless of
// which pass won.
type ExtractionResult struct {
	Fields          []FieldResult `json:"fields"`
	ExtractionScore float64       `json:"extraction_score"` // 0-100
	FieldsExtracted int           `json:"fields_extracted"`
	FieldsTotal     int           `json:"fields_total"`
	Summary         string        `json:"summary"`
}

// Field returns the result for the named field, or nil when the field
// had no candidates.
func (r *ExtractionResult) Field(name string) *FieldResult {
	for i := range r.Fields {
		if r.Fields[i].Field == name {
			return &r.Fields[i]
		}
	}
	return nil
}

// Weights exposes the local-confidence blending knobs. The voting,
// tie-break and score accounting behavior is fixed; only the numeric
// blend is configurable.
type Weights struct {
	// RankDecay is subtracted per pattern rank: rank 0 weighs 1.0,
	// rank 1 weighs 1.0-RankDecay, floored at 0.1.
	RankDecay float64
	// TokenFallback is the token confidence used when no tokens
	// overlap the matched span.
	TokenFallback float64
	// NormalizePenalty multiplies the confidence of candidates whose
	// value failed strict normalization/validation.
	NormalizePenalty float64
	// AgreementBonus is added per extra candidate agreeing on a value,
	// capped so volume never beats a single specific match by much.
	AgreementBonus float64
}

// DefaultWeights returns the calibrated defaults.
func DefaultWeights() Weights {
	return Weights{
		RankDecay:        0.15,
		TokenFallback:    0.60,
		NormalizePenalty: 0.80,
		AgreementBonus:   0.05,
	}
}
