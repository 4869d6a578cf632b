/**
 * Field pattern rules for passport/ID extraction
 *
 * Each field carries an ordered pattern list, most specific first.
 * Pattern position is the candidate's pattern_rank: lower rank means a
 * more trusted match. The lists are read-only after startup and passed
 * explicitly into the extractor so tests can inject alternates.
 */

package extraction

import (
	"regexp"
	"strings"
)

// Kind selects the normalization applied to a field's raw matches.
type Kind int

const (
	KindIdentifier Kind = iota
	KindName
	KindDate
	KindSex
	KindPlace
	KindKeyword
)

// Field names, in canonical output order.
const (
	FieldPassportNumber = "passport_number"
	FieldNationalID     = "national_id"
	FieldFullName       = "full_name"
	FieldSex            = "sex"
	FieldDateOfBirth    = "date_of_birth"
	FieldDateOfIssue    = "date_of_issue"
	FieldDateOfExpiry   = "date_of_expiry"
	FieldPlaceOfBirth   = "place_of_birth"
	FieldNationality    = "nationality"
	FieldCountryCode    = "country_code"
)

// FieldOrder is the canonical field order for results and score
// accounting. ExtractionScore divides by its length, so fields with no
// candidates still count against the score.
var FieldOrder = []string{
	FieldPassportNumber,
	FieldNationalID,
	FieldFullName,
	FieldSex,
	FieldDateOfBirth,
	FieldDateOfIssue,
	FieldDateOfExpiry,
	FieldPlaceOfBirth,
	FieldNationality,
	FieldCountryCode,
}

// fieldIndex maps each canonical field to its position in FieldOrder.
var fieldIndex = func() map[string]int {
	m := make(map[string]int, len(FieldOrder))
	for i, f := range FieldOrder {
		m[f] = i
	}
	return m
}()

// FieldRule binds a field to its ordered pattern list.
type FieldRule struct {
	Field    string
	Kind     Kind
	Patterns []*regexp.Regexp
}

// Rules is an immutable ordered rule set. Construct with DefaultRules
// or NewRules; never mutate after startup.
type Rules struct {
	rules []FieldRule
}

// NewRules builds a rule set from explicit field rules.
func NewRules(rules []FieldRule) *Rules {
	return &Rules{rules: rules}
}

// All returns the rules in definition order.
func (r *Rules) All() []FieldRule {
	return r.rules
}

const dateToken = `[0-3]?[0-9][\s\-/\.][0-1]?[0-9][\s\-/\.][1-2][0-9]{3}`

// knownPlaces is the place-of-birth gazetteer: Sudanese cities plus the
// common expatriate issuing locations seen on Sudanese passports.
var knownPlaces = []string{
	"KHARTOUM", "OMDURMAN", "BAHRI", "KASSALA", "PORTSUDAN",
	"NYALA", "ELOBEID", "GEDAREF", "WAD MADANI", "KOSTI",
	"ALFASHER", "DAMAZIN", "KADUGLI", "DONGOLA", "ATBARA",
	"SENNAR", "RABAK", "GENEINA", "DILLING", "ALAYYAT",
	"UMM RUWABA", "ZALINGEI", "ALQADARIF", "AD DOUIEM",
	"KUWAIT", "RIYADH", "JEDDAH", "MECCA", "SAUDI ARABIA",
	"IRAN", "TUNISIA", "ALGERIA", "MOROCCO", "LIBYA", "TURKEY",
	"SYRIA", "LEBANON", "JORDAN", "IRAQ", "EGYPT",
}

// nonNameWords are document labels that pattern matches sometimes
// swallow; a name containing any of them fails normalization.
var nonNameWords = []string{
	"REPUBLIC", "SUDAN", "PASSPORT", "TYPE", "NATIONAL",
	"NUMBER", "DATE", "BIRTH", "ISSUE", "EXPIRY", "SEX",
	"PLACE", "NATIONALITY", "SIGNATURE", "HOLDER", "AUTHORITY",
	"GENDER", "COUNTRY", "CODE", "DOCUMENT", "IDENTIFICATION",
}

// DefaultRules returns the production passport rule set.
func DefaultRules() *Rules {
	return NewRules([]FieldRule{
		{
			Field: FieldPassportNumber,
			Kind:  KindIdentifier,
			Patterns: compile(
				`(?i)Passport\s*No\.?\s*:?\s*([A-Z0-9]{8,10})`,
				`P\s*[0-9]{8,9}`,
				`(?i)\bNo\.?\s*:?\s*([A-Z0-9]{8,10})`,
				`[PD][0-9O]{8,9}`, // O/0 confusion
				`\b([A-Z]{1,2}\s*[0-9]{6,9})\b`,
				`جواز\s*رقم\s*:?\s*([A-Z0-9]{8,10})`,
			),
		},
		{
			Field: FieldNationalID,
			Kind:  KindIdentifier,
			Patterns: compile(
				`(?i)National\s*No\.?\s*:?\s*(\d{3}[-\s]?\d{4}[-\s]?\d{4,5})`,
				`\d{3}[-\s]\d{4}[-\s]\d{4,5}`,
				`[0-9]{3}[\s\-\.][0-9]{4}[\s\-\.][0-9]{4,5}`,
				`\b\d{11,12}\b`,
				`الرقم\s*الوطني\s*:?\s*(\d{3}[-\s]?\d{4}[-\s]?\d{4,5})`,
			),
		},
		{
			Field: FieldFullName,
			Kind:  KindName,
			// Space-only classes: a name match must not spill across
			// line breaks into the next label.
			Patterns: compile(
				`(?i)Full\s*Name\s*:?[ \t]*([A-Z][A-Z ]{8,58})`,
				`(?:Name|NAME)\s*:?[ \t]*([A-Z][A-Z ]{8,58})`,
				`[A-Z]{3,}(?: [A-Z]{3,}){2,5}`,
				`[A-Z]{3,} [A-Z]{3,}`,
				`[A-Z][A-Z \-']{10,50}`,
				`(?:الاسم\s*الكامل|الاسم)\s*:?[ \t]*([A-Z][A-Z ]{8,58})`,
			),
		},
		{
			Field: FieldSex,
			Kind:  KindSex,
			Patterns: compile(
				`(?i)(?:Sex|Gender)\s*:?\s*([MF])\b`,
				`\b([MF])\s*/`,
				`\b(MALE|FEMALE)\b`,
				`الجنس\s*:?\s*([MF])\b`,
			),
		},
		{
			Field: FieldDateOfBirth,
			Kind:  KindDate,
			Patterns: compile(
				`(?i)(?:Date\s*of\s*Birth|DOB)\s*:?\s*(`+dateToken+`)`,
				`(?i)Birth\s*:?\s*(`+dateToken+`)`,
			),
		},
		{
			Field: FieldDateOfIssue,
			Kind:  KindDate,
			Patterns: compile(
				`(?i)Date\s*of\s*Issue\s*:?\s*(`+dateToken+`)`,
				`(?i)Issued?\s*:?\s*(`+dateToken+`)`,
			),
		},
		{
			Field: FieldDateOfExpiry,
			Kind:  KindDate,
			Patterns: compile(
				`(?i)Date\s*of\s*Expiry\s*:?\s*(`+dateToken+`)`,
				`(?i)(?:Expiry|Expiration|Expires?)\s*:?\s*(`+dateToken+`)`,
			),
		},
		{
			Field: FieldPlaceOfBirth,
			Kind:  KindPlace,
			Patterns: compile(
				`(?i)Place\s*of\s*Birth\s*:?[ \t]*([A-Z][A-Z ]{2,30})`,
				placeAlternation(),
			),
		},
		{
			Field: FieldNationality,
			Kind:  KindKeyword,
			Patterns: compile(
				`\bSUDANESE\b`,
				`\b(?:REPUBLIC\s+OF\s+(?:THE\s+)?SUDAN|SUDAN|SDN)\b`,
			),
		},
		{
			Field: FieldCountryCode,
			Kind:  KindKeyword,
			Patterns: compile(
				`\bSDN\b`,
				`\bSUDAN\b`,
			),
		},
	})
}

// datePool holds the generic date patterns used by the chronological
// date-assignment fallback. A pass usually reads several unlabeled
// dates; these are pooled, validated and ordered to fill date fields
// the labeled patterns missed.
var datePool = compile(
	`\d{2}[-/]\d{2}[-/]\d{4}`,
	`\d{1,2}[-/]\d{1,2}[-/]\d{4}`,
	`\d{2}\.\d{2}\.\d{4}`,
	`\d{2}\s+\d{2}\s+\d{4}`,
	`\d{4}[-/]\d{2}[-/]\d{2}`, // ISO
)

func compile(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		patterns[i] = regexp.MustCompile(e)
	}
	return patterns
}

func placeAlternation() string {
	quoted := make([]string, len(knownPlaces))
	for i, p := range knownPlaces {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return `\b(` + strings.Join(quoted, "|") + `)\b`
}
