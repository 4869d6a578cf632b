/**
 * Cross-pass candidate fusion
 *
 * Candidates for a field are grouped by normalized value; agreement
 * across passes raises a group's score. The winning group per field is
 * chosen deterministically: score, then best pattern rank, then best
 * pass priority, then lexical value. Date fields the voting left empty
 * are backfilled from the pooled unlabeled dates in chronological
 * order.
 */

package extraction

import (
	"fmt"
	"sort"
)

// valueGroup aggregates every candidate sharing one normalized value.
// bestRank and bestPriority belong to the group's best candidate, the
// one carrying the max local confidence; a weaker candidate never
// improves the group's tie-break position.
type valueGroup struct {
	value        string
	score        float64
	votes        int
	bestRank     int
	bestPriority int
	methods      map[string]bool
}

// Fuse merges candidates from all passes into one result per field.
// The result always carries an entry slot for every canonical field in
// the score denominator; fields without a winner are simply absent
// from Fields but still counted in FieldsTotal.
func Fuse(candidates []FieldCandidate, w Weights) ExtractionResult {
	byField := make(map[string][]FieldCandidate)
	for _, c := range candidates {
		byField[c.Field] = append(byField[c.Field], c)
	}

	result := ExtractionResult{FieldsTotal: len(FieldOrder)}
	sum := 0.0
	for _, field := range FieldOrder {
		group := pickWinner(byField[field], w)
		if group == nil {
			continue
		}
		result.Fields = append(result.Fields, FieldResult{
			Field:      field,
			Value:      group.value,
			Confidence: group.score,
			Method:     firstMethod(group.methods),
			Votes:      group.votes,
		})
		sum += group.score
	}
	result.FieldsExtracted = len(result.Fields)
	result.ExtractionScore = 100.0 * sum / float64(result.FieldsTotal)
	result.Summary = fmt.Sprintf("%d/%d fields extracted", result.FieldsExtracted, result.FieldsTotal)
	return result
}

func pickWinner(candidates []FieldCandidate, w Weights) *valueGroup {
	if len(candidates) == 0 {
		return nil
	}
	groups := make(map[string]*valueGroup)
	for _, c := range candidates {
		g, ok := groups[c.Value]
		if !ok {
			g = &valueGroup{
				value:        c.Value,
				bestRank:     c.PatternRank,
				bestPriority: c.PassPriority,
				methods:      make(map[string]bool),
			}
			groups[c.Value] = g
		}
		if c.Confidence > g.score ||
			(c.Confidence == g.score &&
				(c.PatternRank < g.bestRank ||
					(c.PatternRank == g.bestRank && c.PassPriority < g.bestPriority))) {
			g.score = c.Confidence
			g.bestRank = c.PatternRank
			g.bestPriority = c.PassPriority
		}
		g.methods[c.Variant+"_"+c.Mode] = true
		g.votes++
	}

	ordered := make([]*valueGroup, 0, len(groups))
	for _, g := range groups {
		g.score += w.AgreementBonus * float64(g.votes-1)
		if g.score > 1.0 {
			g.score = 1.0
		}
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		if a.bestPriority != b.bestPriority {
			return a.bestPriority < b.bestPriority
		}
		return a.value < b.value
	})
	return ordered[0]
}

func firstMethod(methods map[string]bool) string {
	keys := make([]string, 0, len(methods))
	for k := range methods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// Date assignment confidences mirror the labeled-pattern trust levels:
// birth and expiry anchor the chronological span, issue sits between.
const (
	assignedBirthConfidence  = 0.85
	assignedIssueConfidence  = 0.80
	assignedExpiryConfidence = 0.85
)

// AssignDates fills date fields the fusion stage left empty from the
// pooled unlabeled dates: the earliest date is taken as birth, the
// latest as expiry, and with three or more distinct dates the
// second-latest as issue. Fields the voting already resolved are never
// overwritten, and pooled dates equal to an already-assigned value are
// not reused. The extraction score and counters are updated in place.
func AssignDates(result *ExtractionResult, pooled []string) {
	if len(pooled) == 0 {
		return
	}
	type dated struct {
		value string
		key   int
	}
	seen := make(map[string]bool)
	taken := make(map[string]bool)
	for _, f := range result.Fields {
		if f.Field == FieldDateOfBirth || f.Field == FieldDateOfIssue || f.Field == FieldDateOfExpiry {
			taken[f.Value] = true
		}
	}
	var dates []dated
	for _, v := range pooled {
		if seen[v] || taken[v] {
			continue
		}
		key, ok := dateSortKey(v)
		if !ok {
			continue
		}
		seen[v] = true
		dates = append(dates, dated{value: v, key: key})
	}
	if len(dates) == 0 {
		return
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].key < dates[j].key })

	assign := func(field, value string, conf float64) {
		if result.Field(field) != nil {
			return
		}
		result.Fields = append(result.Fields, FieldResult{
			Field:      field,
			Value:      value,
			Confidence: conf,
			Method:     "date_assignment",
			Votes:      1,
		})
		result.FieldsExtracted++
		result.ExtractionScore += 100.0 * conf / float64(result.FieldsTotal)
	}

	assign(FieldDateOfBirth, dates[0].value, assignedBirthConfidence)
	if len(dates) >= 2 {
		assign(FieldDateOfExpiry, dates[len(dates)-1].value, assignedExpiryConfidence)
	}
	if len(dates) >= 3 {
		assign(FieldDateOfIssue, dates[len(dates)-2].value, assignedIssueConfidence)
	}

	// Assigned fields were appended; restore canonical field order.
	sort.SliceStable(result.Fields, func(i, j int) bool {
		return fieldIndex[result.Fields[i].Field] < fieldIndex[result.Fields[j].Field]
	})
	result.Summary = fmt.Sprintf("%d/%d fields extracted", result.FieldsExtracted, result.FieldsTotal)
}
