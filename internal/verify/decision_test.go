package verify

import "testing"

func TestDecide(t *testing.T) {
	thresholds := Thresholds{
		SimThreshold:      0.8,
		LivenessThreshold: 0.7,
		LivenessEnabled:   true,
		OCRMinScore:       60,
	}

	testCases := []struct {
		name        string
		scores      Scores
		wantVerdict Verdict
		wantRule    string
	}{
		{
			name:        "all checks passed",
			scores:      Scores{Similarity: 0.9, LivenessScore: 0.9, ExtractionScore: 90},
			wantVerdict: VerdictVerified,
			wantRule:    "all_checks_passed",
		},
		{
			name:        "face mismatch rejects regardless of extraction",
			scores:      Scores{Similarity: 0.5, LivenessScore: 0.9, ExtractionScore: 100},
			wantVerdict: VerdictRejected,
			wantRule:    "face_mismatch",
		},
		{
			name:        "liveness failure rejects",
			scores:      Scores{Similarity: 0.9, LivenessScore: 0.3, ExtractionScore: 90},
			wantVerdict: VerdictRejected,
			wantRule:    "liveness_failed",
		},
		{
			name:        "low extraction flags review",
			scores:      Scores{Similarity: 0.9, LivenessScore: 0.9, ExtractionScore: 40},
			wantVerdict: VerdictNeedsReview,
			wantRule:    "low_extraction_score",
		},
		{
			name:        "face mismatch evaluated before liveness",
			scores:      Scores{Similarity: 0.5, LivenessScore: 0.3, ExtractionScore: 40},
			wantVerdict: VerdictRejected,
			wantRule:    "face_mismatch",
		},
		{
			name:        "boundary values pass",
			scores:      Scores{Similarity: 0.8, LivenessScore: 0.7, ExtractionScore: 60},
			wantVerdict: VerdictVerified,
			wantRule:    "all_checks_passed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.scores, thresholds)
			if got.Verdict != tc.wantVerdict {
				t.Errorf("verdict = %s, want %s", got.Verdict, tc.wantVerdict)
			}
			if got.Rule != tc.wantRule {
				t.Errorf("rule = %s, want %s", got.Rule, tc.wantRule)
			}
			if got.Scores != tc.scores {
				t.Errorf("decision must carry its input scores, got %+v", got.Scores)
			}
		})
	}
}

func TestDecideLivenessDisabled(t *testing.T) {
	thresholds := Thresholds{
		SimThreshold:      0.8,
		LivenessThreshold: 0.7,
		LivenessEnabled:   false,
		OCRMinScore:       60,
	}

	got := Decide(Scores{Similarity: 0.9, LivenessScore: 0.0, ExtractionScore: 90}, thresholds)
	if got.Verdict != VerdictVerified {
		t.Errorf("verdict = %s, want VERIFIED with liveness disabled", got.Verdict)
	}
	if !got.LivenessPassed {
		t.Error("liveness gate should report passed when disabled")
	}
}

func TestDecideDeterminism(t *testing.T) {
	thresholds := DefaultThresholds()
	scores := Scores{Similarity: 0.61, LivenessScore: 0.71, ExtractionScore: 60.1}

	first := Decide(scores, thresholds)
	for i := 0; i < 10; i++ {
		if got := Decide(scores, thresholds); got != first {
			t.Fatalf("run %d: %+v != %+v", i, got, first)
		}
	}
}
