package extraction

import (
	"math"
	"testing"
)

func candidate(field, value string, conf float64, rank, priority int) FieldCandidate {
	return FieldCandidate{
		Field:        field,
		Value:        value,
		RawValue:     value,
		Confidence:   conf,
		PatternRank:  rank,
		Variant:      "grayscale",
		Mode:         "standard",
		PassPriority: priority,
	}
}

func TestFuseDeterminism(t *testing.T) {
	candidates := []FieldCandidate{
		candidate(FieldPassportNumber, "P12345678", 0.8, 0, 0),
		candidate(FieldPassportNumber, "P12345679", 0.8, 1, 100),
		candidate(FieldFullName, "AHMED HASSAN MOHAMED ALI", 0.7, 0, 0),
	}

	first := Fuse(candidates, DefaultWeights())
	for i := 0; i < 50; i++ {
		// Reverse input order on odd runs; completion order must not
		// matter.
		input := make([]FieldCandidate, len(candidates))
		copy(input, candidates)
		if i%2 == 1 {
			for l, r := 0, len(input)-1; l < r; l, r = l+1, r-1 {
				input[l], input[r] = input[r], input[l]
			}
		}
		got := Fuse(input, DefaultWeights())
		if got.ExtractionScore != first.ExtractionScore {
			t.Fatalf("run %d: score %v != %v", i, got.ExtractionScore, first.ExtractionScore)
		}
		for j, f := range got.Fields {
			if f != first.Fields[j] {
				t.Fatalf("run %d: field %d = %+v, want %+v", i, j, f, first.Fields[j])
			}
		}
	}
}

func TestFuseAgreementBonus(t *testing.T) {
	w := DefaultWeights()
	candidates := []FieldCandidate{
		candidate(FieldPassportNumber, "P12345678", 0.70, 0, 0),
		candidate(FieldPassportNumber, "P12345678", 0.60, 0, 100),
		candidate(FieldPassportNumber, "P12345678", 0.50, 0, 200),
	}

	result := Fuse(candidates, w)
	f := result.Field(FieldPassportNumber)
	if f == nil {
		t.Fatal("expected passport_number result")
	}

	// max local confidence + bonus per extra agreeing candidate
	want := 0.70 + 2*w.AgreementBonus
	if math.Abs(f.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", f.Confidence, want)
	}
	if f.Votes != 3 {
		t.Errorf("votes = %d, want 3", f.Votes)
	}
}

func TestFuseScoreCap(t *testing.T) {
	candidates := []FieldCandidate{
		candidate(FieldSex, "M", 0.98, 0, 0),
		candidate(FieldSex, "M", 0.98, 0, 1),
		candidate(FieldSex, "M", 0.98, 0, 2),
	}

	result := Fuse(candidates, DefaultWeights())
	if f := result.Field(FieldSex); f.Confidence > 1.0 {
		t.Errorf("confidence %v exceeds 1.0", f.Confidence)
	}
}

func TestFuseMonotonicity(t *testing.T) {
	base := []FieldCandidate{
		candidate(FieldPassportNumber, "P12345678", 0.60, 0, 0),
		candidate(FieldFullName, "AHMED HASSAN MOHAMED ALI", 0.70, 0, 0),
	}

	before := Fuse(base, DefaultWeights()).Field(FieldPassportNumber).Confidence

	raised := make([]FieldCandidate, len(base))
	copy(raised, base)
	raised[0].Confidence = 0.85

	after := Fuse(raised, DefaultWeights()).Field(FieldPassportNumber).Confidence
	if after < before {
		t.Errorf("raising local confidence lowered fused confidence: %v -> %v", before, after)
	}
}

func TestFuseMissingFieldAccounting(t *testing.T) {
	// A single field at full confidence; the other nine contribute 0.
	candidates := []FieldCandidate{
		candidate(FieldPassportNumber, "P12345678", 1.0, 0, 0),
	}

	result := Fuse(candidates, DefaultWeights())

	if result.FieldsTotal != len(FieldOrder) {
		t.Fatalf("FieldsTotal = %d, want %d", result.FieldsTotal, len(FieldOrder))
	}
	if result.FieldsExtracted != 1 {
		t.Fatalf("FieldsExtracted = %d, want 1", result.FieldsExtracted)
	}
	want := 100.0 / float64(len(FieldOrder))
	if math.Abs(result.ExtractionScore-want) > 1e-9 {
		t.Errorf("ExtractionScore = %v, want %v", result.ExtractionScore, want)
	}
	if result.Field(FieldFullName) != nil {
		t.Error("full_name should be absent with zero candidates")
	}
	if result.Summary != "1/10 fields extracted" {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestFuseTieBreaks(t *testing.T) {
	testCases := []struct {
		name string
		a, b FieldCandidate
		want string
	}{
		{
			name: "lower pattern rank wins",
			a:    candidate(FieldPassportNumber, "P11111111", 0.8, 2, 0),
			b:    candidate(FieldPassportNumber, "P22222222", 0.8, 0, 0),
			want: "P22222222",
		},
		{
			name: "lower pass priority wins when ranks equal",
			a:    candidate(FieldPassportNumber, "P11111111", 0.8, 1, 300),
			b:    candidate(FieldPassportNumber, "P22222222", 0.8, 1, 100),
			want: "P22222222",
		},
		{
			name: "lexical order when everything equal",
			a:    candidate(FieldPassportNumber, "P33333333", 0.8, 1, 100),
			b:    candidate(FieldPassportNumber, "P22222222", 0.8, 1, 100),
			want: "P22222222",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, input := range [][]FieldCandidate{{tc.a, tc.b}, {tc.b, tc.a}} {
				result := Fuse(input, DefaultWeights())
				f := result.Field(FieldPassportNumber)
				if f == nil || f.Value != tc.want {
					t.Errorf("winner = %+v, want value %s", f, tc.want)
				}
			}
		})
	}
}

func TestFuseTieBreakUsesBestCandidateRank(t *testing.T) {
	// The group's tie-break rank belongs to its max-confidence
	// candidate; a weaker straggler with a better rank must not
	// improve the group's position.
	loser := []FieldCandidate{
		candidate(FieldPassportNumber, "P11111111", 0.80, 2, 0),
		candidate(FieldPassportNumber, "P11111111", 0.10, 0, 0), // straggler
	}
	winner := candidate(FieldPassportNumber, "P22222222", 0.80, 1, 0)

	for _, input := range [][]FieldCandidate{
		append(append([]FieldCandidate{}, loser...), winner),
		{winner, loser[0], loser[1]},
	} {
		// P11111111 carries a vote bonus, so strip agreement to
		// isolate the rank comparison by equalizing scores.
		w := DefaultWeights()
		w.AgreementBonus = 0

		result := Fuse(input, w)
		f := result.Field(FieldPassportNumber)
		if f == nil || f.Value != "P22222222" {
			t.Errorf("winner = %+v, want P22222222 via best-candidate rank", f)
		}
	}
}

func TestAssignDatesCanonicalOrder(t *testing.T) {
	candidates := []FieldCandidate{
		candidate(FieldPassportNumber, "P12345678", 0.8, 0, 0),
		candidate(FieldNationality, "SUDANESE", 0.7, 0, 0),
	}
	result := Fuse(candidates, DefaultWeights())
	AssignDates(&result, []string{"15-06-2019", "22-03-1985", "15-06-2029"})

	want := []string{
		FieldPassportNumber,
		FieldDateOfBirth,
		FieldDateOfIssue,
		FieldDateOfExpiry,
		FieldNationality,
	}
	if len(result.Fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(result.Fields), len(want))
	}
	for i, f := range result.Fields {
		if f.Field != want[i] {
			t.Errorf("field %d = %s, want %s (canonical order)", i, f.Field, want[i])
		}
	}
}

func TestAssignDatesChronological(t *testing.T) {
	result := Fuse(nil, DefaultWeights())
	pooled := []string{"15-06-2019", "22-03-1985", "15-06-2029"}

	AssignDates(&result, pooled)

	birth := result.Field(FieldDateOfBirth)
	issue := result.Field(FieldDateOfIssue)
	expiry := result.Field(FieldDateOfExpiry)

	if birth == nil || birth.Value != "22-03-1985" {
		t.Errorf("date_of_birth = %+v, want earliest date", birth)
	}
	if issue == nil || issue.Value != "15-06-2019" {
		t.Errorf("date_of_issue = %+v, want middle date", issue)
	}
	if expiry == nil || expiry.Value != "15-06-2029" {
		t.Errorf("date_of_expiry = %+v, want latest date", expiry)
	}
	if result.FieldsExtracted != 3 {
		t.Errorf("FieldsExtracted = %d, want 3", result.FieldsExtracted)
	}
	if birth.Method != "date_assignment" {
		t.Errorf("Method = %q, want date_assignment", birth.Method)
	}
}

func TestAssignDatesTwoDates(t *testing.T) {
	result := Fuse(nil, DefaultWeights())
	AssignDates(&result, []string{"01-01-2030", "02-02-1990"})

	if f := result.Field(FieldDateOfBirth); f == nil || f.Value != "02-02-1990" {
		t.Errorf("date_of_birth = %+v", f)
	}
	if f := result.Field(FieldDateOfExpiry); f == nil || f.Value != "01-01-2030" {
		t.Errorf("date_of_expiry = %+v", f)
	}
	if f := result.Field(FieldDateOfIssue); f != nil {
		t.Errorf("date_of_issue should stay empty with two pooled dates, got %+v", f)
	}
}

func TestAssignDatesNeverOverwrites(t *testing.T) {
	candidates := []FieldCandidate{
		candidate(FieldDateOfBirth, "10-10-1990", 0.9, 0, 0),
	}
	result := Fuse(candidates, DefaultWeights())

	AssignDates(&result, []string{"01-01-1980", "01-01-2030"})

	if f := result.Field(FieldDateOfBirth); f.Value != "10-10-1990" {
		t.Errorf("voted date_of_birth overwritten: %+v", f)
	}
	// The pooled earliest goes unused for birth but expiry still fills.
	if f := result.Field(FieldDateOfExpiry); f == nil || f.Value != "01-01-2030" {
		t.Errorf("date_of_expiry = %+v", f)
	}
}
