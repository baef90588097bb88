package decision

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

var (
	minced = entity.LimitSet{
		Satisfactory:   "< 50 (UFC/g)",
		Acceptable:     "50 ≤ x < 500 (UFC/g)",
		Unsatisfactory: "≥ 500 (UFC/g)",
	}
	shellfish = entity.LimitSet{
		Satisfactory:   "≤ 1 (UFC/g)",
		Acceptable:     "1 < x ≤ 10 (UFC/g)",
		Unsatisfactory: "> 10 (UFC/g)",
	}
)

func TestEvaluateScenarios(t *testing.T) {
	e := NewEngine()

	t.Run("numeric below limit is satisfactory", func(t *testing.T) {
		d := e.Evaluate("< 10", "UFC/g", entity.LimitSet{Satisfactory: "<10^2 (ufc/g)"})
		assert.Equal(t, constants.BandSatisfactory, d.Band)
		require.NotNil(t, d.Compliance())
		assert.True(t, *d.Compliance())
		assert.Equal(t, "<10^2 (ufc/g)", d.AppliedLimit)
	})

	t.Run("detected against absence is unsatisfactory", func(t *testing.T) {
		d := e.Evaluate("Rilevato", "", entity.LimitSet{Satisfactory: "Assente (in 25 g)"})
		assert.Equal(t, constants.BandUnsatisfactory, d.Band)
		require.NotNil(t, d.Compliance())
		assert.False(t, *d.Compliance())
	})

	t.Run("surface result against food limits is undetermined", func(t *testing.T) {
		d := e.Evaluate("33 UFC/cm²", "", entity.LimitSet{
			Satisfactory:   "< 10 (UFC/g)",
			Unsatisfactory: "≥ 100 (UFC/g)",
		})
		assert.Equal(t, constants.BandUndetermined, d.Band)
		assert.Nil(t, d.Compliance())
		assert.True(t, d.UnitBlocked)
		assert.Contains(t, d.Rationale, string(familySurface))
		assert.Contains(t, d.Rationale, string(familyFood))
	})
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		result string
		unit   string
		limits entity.LimitSet
		want   constants.Band
	}{
		{"empty result", "  ", "UFC/g", minced, constants.BandUndetermined},
		{"not detected", "Non rilevato", "", entity.LimitSet{Satisfactory: "Assente in 25 g"}, constants.BandSatisfactory},
		{"assente", "Assente", "", entity.LimitSet{Satisfactory: "Assenza in 25 g"}, constants.BandSatisfactory},
		{"english absent", "not detected in 25g", "", entity.LimitSet{Satisfactory: "absent in 25 g"}, constants.BandSatisfactory},
		{"presente", "Presente", "", entity.LimitSet{Satisfactory: "Assente in 25 g"}, constants.BandUnsatisfactory},
		{"positivo", "positivo", "", entity.LimitSet{Satisfactory: "Assente"}, constants.BandUnsatisfactory},
		{"qualitative unknown", "vedi nota", "", entity.LimitSet{Satisfactory: "Assente"}, constants.BandUndetermined},
		{"food result surface limit", "50", "UFC/g", entity.LimitSet{Satisfactory: "< 10 (UFC/cm²)"}, constants.BandUndetermined},
		{"same family different unit", "< 10", "MPN/g", entity.LimitSet{Satisfactory: "< 100 (UFC/g)"}, constants.BandUndetermined},
		{"unit spelled differently", "< 10", "U.F.C./g", entity.LimitSet{Satisfactory: "< 100 (ufc/g)"}, constants.BandSatisfactory},
		{"three bands sat", "20", "UFC/g", minced, constants.BandSatisfactory},
		{"three bands lower edge acceptable", "50", "UFC/g", minced, constants.BandAcceptable},
		{"three bands acceptable", "120", "UFC/g", minced, constants.BandAcceptable},
		{"three bands upper edge unsat", "500", "UFC/g", minced, constants.BandUnsatisfactory},
		{"scientific unsat", "3,2x10^3", "UFC/g", minced, constants.BandUnsatisfactory},
		{"less-than at bound is not below it", "< 50", "UFC/g", minced, constants.BandAcceptable},
		{"less-than equal to sat bound", "<100", "UFC/g", entity.LimitSet{Satisfactory: "<10^2 (UFC/g)"}, constants.BandUndetermined},
		{"less-than reaching unsat bound", "<10", "UFC/g", entity.LimitSet{Satisfactory: "<1 (UFC/g)", Unsatisfactory: "≥10 (UFC/g)"}, constants.BandUnsatisfactory},
		{"greater-than inside acceptable", "> 300", "UFC/g", minced, constants.BandAcceptable},
		{"inclusive sat", "1", "UFC/g", shellfish, constants.BandSatisfactory},
		{"inclusive acceptable max", "10", "UFC/g", shellfish, constants.BandAcceptable},
		{"strict unsat", "11", "UFC/g", shellfish, constants.BandUnsatisfactory},
		{"bare exponent", "50", "", entity.LimitSet{Satisfactory: "<102"}, constants.BandSatisfactory},
		{"hundred not rewritten", "100", "", entity.LimitSet{Satisfactory: "< 100"}, constants.BandUndetermined},
		{"sat only exceeded", "150", "UFC/g", entity.LimitSet{Satisfactory: "<10^2 (ufc/g)"}, constants.BandUndetermined},
		{"non numeric against numeric", "Non rilevato", "UFC/g", minced, constants.BandUndetermined},
		{"free text limit", "12 mg/kg", "", entity.LimitSet{Satisfactory: "Conforme se inferiore al limite di legge"}, constants.BandUndetermined},
	}
	e := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Evaluate(tt.result, tt.unit, tt.limits)
			assert.Equal(t, tt.want, d.Band, d.Rationale)
			assert.Equal(t, tt.want.Compliance(), d.Compliance())
			assert.NotEmpty(t, d.Rationale)
		})
	}
}

func TestEvaluateParsedFlag(t *testing.T) {
	e := NewEngine()
	assert.True(t, e.Evaluate("150", "", entity.LimitSet{Satisfactory: "< 100"}).Parsed)
	assert.True(t, e.Evaluate("Rilevato", "", entity.LimitSet{Satisfactory: "Assente"}).Parsed)
	assert.False(t, e.Evaluate("12 mg/kg", "", entity.LimitSet{Satisfactory: "Conforme se inferiore al limite"}).Parsed)
}

// Results between 101 and 109 are ordinary numbers; only limits spell powers as 10n.
func TestMeasuredHundredsAreNotPowers(t *testing.T) {
	e := NewEngine()
	limits := entity.LimitSet{Satisfactory: "<10^3 (UFC/g)", Unsatisfactory: "≥10^4 (UFC/g)"}
	for v := 101; v <= 109; v++ {
		for _, result := range []string{fmt.Sprintf("%d", v), fmt.Sprintf("%d UFC/g", v)} {
			d := e.Evaluate(result, "UFC/g", limits)
			assert.Equal(t, constants.BandSatisfactory, d.Band, result)
			assert.Contains(t, d.Evidence, fmt.Sprintf("measured=%d", v), result)
		}
	}

	d := e.Evaluate("104 UFC/g", "", entity.LimitSet{Satisfactory: "<102 (UFC/g)"})
	assert.Equal(t, constants.BandUndetermined, d.Band, "bare 10n still reads as a power in the limit")
}

// With only a satisfactory bound, a numeric result is satisfactory below it and
// undetermined otherwise; adding an unsatisfactory bound turns the upper part unsatisfactory.
func TestSatisfactoryOnlyProperty(t *testing.T) {
	e := NewEngine()
	satOnly := entity.LimitSet{Satisfactory: "< 100 (UFC/g)"}
	withUnsat := entity.LimitSet{Satisfactory: "< 100 (UFC/g)", Unsatisfactory: "≥ 1000 (UFC/g)"}

	for v := 0; v <= 2000; v += 37 {
		result := fmt.Sprintf("%d", v)

		got := e.Evaluate(result, "UFC/g", satOnly).Band
		if v < 100 {
			assert.Equal(t, constants.BandSatisfactory, got, result)
		} else {
			assert.Equal(t, constants.BandUndetermined, got, result)
		}

		got = e.Evaluate(result, "UFC/g", withUnsat).Band
		switch {
		case v < 100:
			assert.Equal(t, constants.BandSatisfactory, got, result)
		case v >= 1000:
			assert.Equal(t, constants.BandUnsatisfactory, got, result)
		default:
			assert.Equal(t, constants.BandUndetermined, got, result)
		}
	}
}

// Surface-area results never get a pass or fail against mass/volume limits, and vice versa.
func TestUnitGuardProperty(t *testing.T) {
	e := NewEngine()
	surfaceUnits := []string{"UFC/cm²", "ufc/cm2", "CFU/cm2"}
	foodUnits := []string{"UFC/g", "ufc/g", "CFU/ml"}
	values := []string{"0", "< 1", "5", "33", "1,5x10^2", "10^6"}

	for _, su := range surfaceUnits {
		for _, fu := range foodUnits {
			for _, v := range values {
				d := e.Evaluate(v, su, entity.LimitSet{Satisfactory: "< 10 (" + fu + ")", Unsatisfactory: "≥ 100 (" + fu + ")"})
				assert.Equal(t, constants.BandUndetermined, d.Band, "%s %s vs %s", v, su, fu)

				d = e.Evaluate(v, fu, entity.LimitSet{Satisfactory: "< 10 (" + su + ")", Unsatisfactory: "≥ 100 (" + su + ")"})
				assert.Equal(t, constants.BandUndetermined, d.Band, "%s %s vs %s", v, fu, su)
			}
		}
	}
}
