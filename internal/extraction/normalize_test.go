package extraction

import "testing"

func TestNormalizeDate(t *testing.T) {
	testCases := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{"dashes", "22-03-1985", "22-03-1985", true},
		{"slashes", "15/06/2019", "15-06-2019", true},
		{"dots", "01.12.2000", "01-12-2000", true},
		{"spaces", "05 07 1999", "05-07-1999", true},
		{"iso reordered", "2029-06-15", "15-06-2029", true},
		{"single digit day and month", "5-7-1999", "05-07-1999", true},
		{"year too early", "01-01-1899", "01-01-1899", false},
		{"year too late", "01-01-2101", "01-01-2101", false},
		{"month out of range", "10-13-1990", "10-13-1990", false},
		{"day out of range", "32-01-1990", "32-01-1990", false},
		{"two parts", "03-1985", "03-1985", false},
		{"garbage", "AB-CD-EFGH", "AB-CD-EFGH", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeDate(tc.raw)
			if got != tc.want || ok != tc.valid {
				t.Errorf("NormalizeDate(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.valid)
			}
		})
	}
}

func TestNormalizePassportNumber(t *testing.T) {
	testCases := []struct {
		raw   string
		want  string
		valid bool
	}{
		{"P04523918", "P04523918", true},
		{"p04523918", "P04523918", true},
		{"P 0452 3918", "P04523918", true},
		{"PO4523918", "P04523918", true}, // O read for 0
		{"P045239181", "P045239181", true},
		{"X04523918", "X04523918", false},
		{"P0452", "P0452", false},
	}

	for _, tc := range testCases {
		got, ok := Normalize(KindIdentifier, FieldPassportNumber, tc.raw)
		if got != tc.want || ok != tc.valid {
			t.Errorf("passport %q = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.valid)
		}
	}
}

func TestNormalizeNationalID(t *testing.T) {
	testCases := []struct {
		raw   string
		want  string
		valid bool
	}{
		{"114-2984-76512", "114-2984-76512", true},
		{"114 2984 76512", "114-2984-76512", true},
		{"114.2984.7651", "114-2984-7651", true},
		{"11429847651", "114-2984-7651", true},   // bare 11 digits
		{"114298476512", "114-2984-76512", true}, // bare 12 digits
		{"114-2984", "114-2984", false},
	}

	for _, tc := range testCases {
		got, ok := Normalize(KindIdentifier, FieldNationalID, tc.raw)
		if got != tc.want || ok != tc.valid {
			t.Errorf("national_id %q = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.valid)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	testCases := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{"clean", "AHMED HASSAN MOHAMED ALI", "AHMED HASSAN MOHAMED ALI", true},
		{"collapses whitespace", "  AHMED   HASSAN  MOHAMED ", "AHMED HASSAN MOHAMED", true},
		{"uppercases", "ahmed hassan mohamed", "AHMED HASSAN MOHAMED", true},
		{"too short", "ABC DEF", "ABC DEF", false},
		{"label word rejected", "PASSPORT AHMED HASSAN", "PASSPORT AHMED HASSAN", false},
		{"label word mid-name", "AHMED NATIONAL HASSAN", "AHMED NATIONAL HASSAN", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Normalize(KindName, FieldFullName, tc.raw)
			if got != tc.want || ok != tc.valid {
				t.Errorf("name %q = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.valid)
			}
		})
	}
}

func TestNormalizeSex(t *testing.T) {
	testCases := []struct {
		raw   string
		want  string
		valid bool
	}{
		{"M", "M", true},
		{"F", "F", true},
		{"MALE", "M", true},
		{"female", "F", true},
		{"X", "X", false},
	}

	for _, tc := range testCases {
		got, ok := Normalize(KindSex, FieldSex, tc.raw)
		if got != tc.want || ok != tc.valid {
			t.Errorf("sex %q = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.valid)
		}
	}
}

func TestNormalizePlace(t *testing.T) {
	if got, ok := Normalize(KindPlace, FieldPlaceOfBirth, "khartoum"); got != "KHARTOUM" || !ok {
		t.Errorf("place khartoum = (%q, %v)", got, ok)
	}
	if got, ok := Normalize(KindPlace, FieldPlaceOfBirth, "SOME UNLISTED TOWN"); got != "SOME UNLISTED TOWN" || !ok {
		t.Errorf("unlisted place = (%q, %v), want kept valid", got, ok)
	}
	if _, ok := Normalize(KindPlace, FieldPlaceOfBirth, "AB"); ok {
		t.Error("two-letter place should fail validation")
	}
}
