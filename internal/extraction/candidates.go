/**
 * Per-pass candidate extraction
 *
 * A pass is one variant x mode OCR run. For every field rule, the
 * first match of each pattern in the pass text becomes one candidate,
 * scored by pattern rank, local token confidence and normalization
 * outcome. Candidates from all passes feed the fusion stage.
 */

package extraction

import (
	"strings"

	"github.com/veridoc/idverify-worker/internal/ocr"
)

const minRankWeight = 0.1

// ExtractCandidates runs every rule against a single pass and returns
// its candidates. Unusable passes contribute nothing.
func ExtractCandidates(p Pass, rules *Rules, w Weights) []FieldCandidate {
	if !p.Usable() {
		return nil
	}
	var out []FieldCandidate
	for _, rule := range rules.All() {
		for rank, re := range rule.Patterns {
			loc := re.FindStringSubmatchIndex(p.Text)
			if loc == nil {
				continue
			}
			start, end := matchBounds(loc)
			raw := strings.TrimSpace(p.Text[start:end])
			if raw == "" {
				continue
			}
			value, ok := Normalize(rule.Kind, rule.Field, raw)
			if value == "" {
				continue
			}
			conf := localConfidence(p, start, end, rank, ok, w)
			out = append(out, FieldCandidate{
				Field:        rule.Field,
				Value:        value,
				RawValue:     raw,
				Confidence:   conf,
				PatternRank:  rank,
				Variant:      p.Variant,
				Mode:         p.Mode,
				PassPriority: p.Priority,
			})
		}
	}
	return out
}

// CollectDateCandidates pools unlabeled date matches from a pass for
// the chronological assignment fallback. Only dates that normalize and
// validate are kept.
func CollectDateCandidates(p Pass) []string {
	if !p.Usable() {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, re := range datePool {
		for _, raw := range re.FindAllString(p.Text, -1) {
			v, ok := NormalizeDate(raw)
			if !ok || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// matchBounds prefers capture group 1 when the pattern defines one,
// falling back to the whole match for bare patterns.
func matchBounds(loc []int) (int, int) {
	if len(loc) >= 4 && loc[2] >= 0 {
		return loc[2], loc[3]
	}
	return loc[0], loc[1]
}

// localConfidence blends three signals: how trusted the matching
// pattern is (rank decay), how confident the OCR tokens under the match
// were, and whether the value survived normalization.
func localConfidence(p Pass, start, end, rank int, normalized bool, w Weights) float64 {
	rankWeight := 1.0 - w.RankDecay*float64(rank)
	if rankWeight < minRankWeight {
		rankWeight = minRankWeight
	}
	conf := rankWeight * tokenConfidence(p.Tokens, start, end, w.TokenFallback)
	if !normalized {
		conf *= w.NormalizePenalty
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// tokenConfidence averages the confidence of tokens overlapping the
// match span. OCR engines without word geometry report no offsets, in
// which case the fallback applies.
func tokenConfidence(tokens []ocr.Token, start, end int, fallback float64) float64 {
	sum, n := 0.0, 0
	for _, t := range tokens {
		if t.Start < 0 || t.End < 0 {
			continue
		}
		if t.Start < end && t.End > start {
			sum += t.Confidence
			n++
		}
	}
	if n == 0 {
		return fallback
	}
	return sum / float64(n)
}
