/**
 * Field value normalization
 *
 * Raw regex matches are noisy: OCR swaps O for 0, dates arrive in half
 * a dozen separators, names carry label fragments. Normalization maps
 * each raw match to a canonical value; a value that cannot be fully
 * normalized keeps its raw form with a confidence penalty rather than
 * being dropped, so weak evidence can still win an otherwise empty
 * field.
 */

package extraction

import (
	"fmt"
	"strconv"
	"strings"
)

var passportNumberRe = compile(`^P[0-9]{8,9}$`)[0]
var nationalIDRe = compile(`^\d{3}-\d{4}-\d{4,5}$`)[0]

// Normalize canonicalizes a raw match for the given field kind.
// The second return reports whether the canonical form validated; a
// false return means the caller should apply the normalize penalty.
func Normalize(kind Kind, field, raw string) (string, bool) {
	switch kind {
	case KindIdentifier:
		if field == FieldNationalID {
			return normalizeNationalID(raw)
		}
		return normalizePassportNumber(raw)
	case KindName:
		return normalizeName(raw)
	case KindDate:
		return NormalizeDate(raw)
	case KindSex:
		return normalizeSex(raw)
	case KindPlace:
		return normalizePlace(raw)
	case KindKeyword:
		return strings.ToUpper(strings.TrimSpace(raw)), true
	default:
		return strings.TrimSpace(raw), false
	}
}

func normalizePassportNumber(raw string) (string, bool) {
	v := strings.ToUpper(raw)
	v = strings.NewReplacer(" ", "", "\t", "", ".", "", ":", "").Replace(v)
	// OCR habitually reads 0 as O inside digit runs.
	if len(v) > 1 {
		v = v[:1] + strings.ReplaceAll(v[1:], "O", "0")
	}
	if passportNumberRe.MatchString(v) {
		return v, true
	}
	return v, false
}

func normalizeNationalID(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	v = strings.NewReplacer(" ", "-", ".", "-", "/", "-").Replace(v)
	for strings.Contains(v, "--") {
		v = strings.ReplaceAll(v, "--", "-")
	}
	if digits := strings.ReplaceAll(v, "-", ""); !strings.Contains(v, "-") && (len(digits) == 11 || len(digits) == 12) {
		v = digits[:3] + "-" + digits[3:7] + "-" + digits[7:]
	}
	if nationalIDRe.MatchString(v) {
		return v, true
	}
	return v, false
}

func normalizeName(raw string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.Join(strings.Fields(v), " ")
	if len(v) < 10 || len(v) > 60 {
		return v, false
	}
	for _, w := range strings.Fields(v) {
		for _, bad := range nonNameWords {
			if w == bad {
				return v, false
			}
		}
	}
	return v, true
}

func normalizeSex(raw string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	switch v {
	case "M", "MALE":
		return "M", true
	case "F", "FEMALE":
		return "F", true
	}
	return v, false
}

func normalizePlace(raw string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.Join(strings.Fields(v), " ")
	for _, p := range knownPlaces {
		if v == p {
			return v, true
		}
	}
	if len(v) >= 3 && len(v) <= 30 {
		return v, true
	}
	return v, false
}

// NormalizeDate canonicalizes a date match to DD-MM-YYYY. Day, month
// and year are range-checked; years outside 1900..2100 are rejected.
// ISO-ordered input (YYYY first) is reordered.
func NormalizeDate(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	v = strings.NewReplacer("/", "-", ".", "-", " ", "-").Replace(v)
	for strings.Contains(v, "--") {
		v = strings.ReplaceAll(v, "--", "-")
	}
	parts := strings.Split(v, "-")
	if len(parts) != 3 {
		return v, false
	}
	var day, month, year string
	if len(parts[0]) == 4 {
		year, month, day = parts[0], parts[1], parts[2]
	} else {
		day, month, year = parts[0], parts[1], parts[2]
	}
	d, err1 := strconv.Atoi(day)
	m, err2 := strconv.Atoi(month)
	y, err3 := strconv.Atoi(year)
	if err1 != nil || err2 != nil || err3 != nil {
		return v, false
	}
	if d < 1 || d > 31 || m < 1 || m > 12 || y < 1900 || y > 2100 {
		return v, false
	}
	return fmt.Sprintf("%02d-%02d-%04d", d, m, y), true
}

// dateSortKey maps a normalized DD-MM-YYYY value to a comparable
// YYYYMMDD integer. Returns false for values that did not normalize.
func dateSortKey(normalized string) (int, bool) {
	parts := strings.Split(normalized, "-")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return 0, false
	}
	d, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return y*10000 + m*100 + d, true
}
