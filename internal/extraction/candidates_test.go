package extraction

import (
	"context"
	"math"
	"regexp"
	"testing"

	"github.com/veridoc/idverify-worker/internal/ocr"
)

func textPass(text string) Pass {
	return Pass{Variant: "grayscale", Mode: "standard", Text: text}
}

func TestExtractCandidatesFirstMatchPerPattern(t *testing.T) {
	rules := NewRules([]FieldRule{{
		Field:    FieldPassportNumber,
		Kind:     KindIdentifier,
		Patterns: []*regexp.Regexp{regexp.MustCompile(`P[0-9]{8}`)},
	}})

	p := textPass("P11111111 some text P22222222")
	got := ExtractCandidates(p, rules, DefaultWeights())

	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1 (first match per pattern)", len(got))
	}
	if got[0].Value != "P11111111" {
		t.Errorf("value = %s, want first match", got[0].Value)
	}
}

func TestExtractCandidatesRankDecay(t *testing.T) {
	w := DefaultWeights()
	rules := NewRules([]FieldRule{{
		Field: FieldPassportNumber,
		Kind:  KindIdentifier,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`Passport No: (P[0-9]{8})`),
			regexp.MustCompile(`P[0-9]{8}`),
		},
	}})

	p := textPass("Passport No: P12345678")
	got := ExtractCandidates(p, rules, w)
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2 (one per pattern)", len(got))
	}

	// Both normalize cleanly with no tokens, so confidence reduces to
	// rankWeight * TokenFallback.
	want0 := 1.0 * w.TokenFallback
	want1 := (1.0 - w.RankDecay) * w.TokenFallback
	if math.Abs(got[0].Confidence-want0) > 1e-9 {
		t.Errorf("rank 0 confidence = %v, want %v", got[0].Confidence, want0)
	}
	if math.Abs(got[1].Confidence-want1) > 1e-9 {
		t.Errorf("rank 1 confidence = %v, want %v", got[1].Confidence, want1)
	}
	if got[0].PatternRank != 0 || got[1].PatternRank != 1 {
		t.Errorf("pattern ranks = %d, %d", got[0].PatternRank, got[1].PatternRank)
	}
}

func TestExtractCandidatesTokenOverlap(t *testing.T) {
	w := DefaultWeights()
	rules := NewRules([]FieldRule{{
		Field:    FieldPassportNumber,
		Kind:     KindIdentifier,
		Patterns: []*regexp.Regexp{regexp.MustCompile(`P[0-9]{8}`)},
	}})

	text := "Passport P12345678 end"
	p := Pass{
		Variant: "grayscale",
		Mode:    "standard",
		Text:    text,
		Tokens: []ocr.Token{
			{Text: "Passport", Confidence: 0.30, Start: 0, End: 8},
			{Text: "P12345678", Confidence: 0.90, Start: 9, End: 18},
			{Text: "end", Confidence: 0.10, Start: 19, End: 22},
		},
	}

	got := ExtractCandidates(p, rules, w)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	// Only the overlapping token counts.
	if math.Abs(got[0].Confidence-0.90) > 1e-9 {
		t.Errorf("confidence = %v, want 0.90", got[0].Confidence)
	}
}

func TestExtractCandidatesNormalizePenalty(t *testing.T) {
	w := DefaultWeights()
	rules := NewRules([]FieldRule{{
		Field:    FieldPassportNumber,
		Kind:     KindIdentifier,
		Patterns: []*regexp.Regexp{regexp.MustCompile(`X[0-9]{8}`)},
	}})

	// X-prefixed value fails passport validation but is kept with a
	// penalty, not dropped.
	got := ExtractCandidates(textPass("X12345678"), rules, w)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	want := 1.0 * w.TokenFallback * w.NormalizePenalty
	if math.Abs(got[0].Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", got[0].Confidence, want)
	}
}

func TestExtractCandidatesSkipsFailedPass(t *testing.T) {
	p := Pass{Variant: "otsu", Mode: "sparse_text", Err: context.DeadlineExceeded}
	if got := ExtractCandidates(p, DefaultRules(), DefaultWeights()); got != nil {
		t.Errorf("failed pass produced %d candidates", len(got))
	}
}

func TestCollectDateCandidates(t *testing.T) {
	p := textPass("DOB 22-03-1985 issued 15/06/2019 expiry 2029-06-15 junk 99-99-9999 dup 22-03-1985")
	got := CollectDateCandidates(p)

	want := map[string]bool{"22-03-1985": true, "15-06-2019": true, "15-06-2029": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want 3 distinct valid dates", got)
	}
	for _, v := range got {
		if !want[v] {
			t.Errorf("unexpected pooled date %s", v)
		}
	}
}

func TestDefaultRulesCoverCanonicalFields(t *testing.T) {
	rules := DefaultRules()
	byField := make(map[string]bool)
	for _, r := range rules.All() {
		byField[r.Field] = true
		if len(r.Patterns) == 0 {
			t.Errorf("field %s has no patterns", r.Field)
		}
	}
	for _, f := range FieldOrder {
		if !byField[f] {
			t.Errorf("canonical field %s has no rule", f)
		}
	}
}

func TestDefaultRulesOnSampleText(t *testing.T) {
	text := `REPUBLIC OF THE SUDAN PASSPORT
Passport No: P04523918
Full Name: AHMED HASSAN MOHAMED ALI
National No.: 114-2984-76512
Sex: M
Date of Birth: 22-03-1985
Date of Issue: 15-06-2019
Date of Expiry: 15-06-2029
Place of Birth: KHARTOUM
SUDANESE SDN`

	candidates := ExtractCandidates(textPass(text), DefaultRules(), DefaultWeights())
	result := Fuse(candidates, DefaultWeights())

	wantValues := map[string]string{
		FieldPassportNumber: "P04523918",
		FieldNationalID:     "114-2984-76512",
		FieldFullName:       "AHMED HASSAN MOHAMED ALI",
		FieldSex:            "M",
		FieldDateOfBirth:    "22-03-1985",
		FieldDateOfIssue:    "15-06-2019",
		FieldDateOfExpiry:   "15-06-2029",
		FieldPlaceOfBirth:   "KHARTOUM",
		FieldNationality:    "SUDANESE",
		FieldCountryCode:    "SDN",
	}

	for field, want := range wantValues {
		f := result.Field(field)
		if f == nil {
			t.Errorf("field %s not extracted", field)
			continue
		}
		if f.Value != want {
			t.Errorf("%s = %q, want %q", field, f.Value, want)
		}
	}
	if result.FieldsExtracted != len(FieldOrder) {
		t.Errorf("FieldsExtracted = %d, want %d", result.FieldsExtracted, len(FieldOrder))
	}
}
