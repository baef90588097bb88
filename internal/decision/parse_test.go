package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePowers(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<105", "<10^5"},
		{"1,5x104 ufc/g", "1,5x10^4 ufc/g"},
		{"<105 (UFC/g) ≥106", "<10^5 (UFC/g) ≥10^6"},
		{"10⁵", "10^5"},
		{"10⁻²", "10^-2"},
		{"10^3", "10^3"},
		{"100", "100"},
		{"2105", "2105"},
		{"10", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePowers(tt.in))
		})
	}
}

func TestNormalizeSuperscripts(t *testing.T) {
	assert.Equal(t, "1,5x10^4", normalizeSuperscripts("1,5x10⁴"))
	assert.Equal(t, "105", normalizeSuperscripts("105"))
	assert.Equal(t, "<105 ufc/g", normalizeSuperscripts("<105 ufc/g"))
}

func TestParseUpper(t *testing.T) {
	tests := []struct {
		in   string
		want bound
		ok   bool
	}{
		{"<10^2 (ufc/g)", bound{value: 100}, true},
		{"≤ 1 (UFC/g)", bound{value: 1, inclusive: true}, true},
		{"<= 10", bound{value: 10, inclusive: true}, true},
		{"< 5×10^5 (UFC/g)", bound{value: 500000}, true},
		{"<102", bound{value: 100}, true},
		{"1E+02", bound{value: 100}, true},
		{"100", bound{value: 100}, true},
		{"> 5", bound{}, false},
		{"Conforme se inferiore al limite di legge", bound{}, false},
		{"", bound{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseUpper(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLower(t *testing.T) {
	b, ok := parseLower("≥ 500 (UFC/g)")
	assert.True(t, ok)
	assert.Equal(t, bound{value: 500, inclusive: true}, b)

	b, ok = parseLower("> 10 (UFC/g)")
	assert.True(t, ok)
	assert.Equal(t, bound{value: 10}, b)

	_, ok = parseLower("< 3")
	assert.False(t, ok)
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in   string
		want interval
		ok   bool
	}{
		{"50 ≤ x < 500 (UFC/g)", interval{min: 50, max: 500, minInclusive: true}, true},
		{"1 < x ≤ 10 (UFC/g)", interval{min: 1, max: 10, maxInclusive: true}, true},
		{"10^2 - 10^3", interval{min: 100, max: 1000, minInclusive: true}, true},
		{"5×10^5 ≤ x < 5×10^6 (UFC/g)", interval{min: 500000, max: 5000000, minInclusive: true}, true},
		{"1000 - 10", interval{min: 10, max: 1000, minInclusive: true}, true},
		{"5", interval{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseRange(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	iv := interval{min: 50, max: 500, minInclusive: true}
	assert.True(t, iv.contains(50))
	assert.True(t, iv.contains(499))
	assert.False(t, iv.contains(500))
	assert.False(t, iv.contains(49))
}

func TestParseMeasured(t *testing.T) {
	tests := []struct {
		in   string
		want measurement
		ok   bool
	}{
		{"< 10", measurement{value: 10, below: true}, true},
		{"<10^2", measurement{value: 100, below: true}, true},
		{"33 UFC/cm²", measurement{value: 33}, true},
		{"1,5x10^2", measurement{value: 150}, true},
		{"1.5E3", measurement{value: 1500}, true},
		{"> 300", measurement{value: 300, above: true}, true},
		{"105", measurement{value: 105}, true},
		{"<105", measurement{value: 105, below: true}, true},
		{"2x10⁴", measurement{value: 20000}, true},
		{"Non rilevato", measurement{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseMeasured(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnits(t *testing.T) {
	assert.Equal(t, "ufc/g", limitUnit("<10^2 (ufc/g)"))
	assert.Equal(t, "UFC/g", limitUnit("< 5×10^5 (UFC/g)"))
	assert.Equal(t, "UFC/g", limitUnit("< 10 UFC/g"))
	assert.Equal(t, "", limitUnit("Assente (in 25 g)"))
	assert.Equal(t, "UFC/cm²", trailingUnit("33 UFC/cm²"))
	assert.Equal(t, "", trailingUnit("< 10"))

	assert.Equal(t, familySurface, familyOf("UFC/cm²"))
	assert.Equal(t, familySurface, familyOf("ufc/cm2"))
	assert.Equal(t, familyFood, familyOf("UFC/g"))
	assert.Equal(t, familyFood, familyOf("cfu/ml"))
	assert.Equal(t, unitFamily(""), familyOf("mg/kg"))

	assert.Equal(t, normalizeUnit("U.F.C. / g"), normalizeUnit("ufc/g"))
}
