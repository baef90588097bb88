package constants

import "strings"

// SampleKind is the physical nature of what a report tested.
type SampleKind string

const (
	SampleSurfaceSwab   SampleKind = "surface-swab"
	SampleFoodItem      SampleKind = "food-item"
	SamplePersonnelSwab SampleKind = "personnel-swab"
	SampleWater         SampleKind = "water"
	SampleOther         SampleKind = "other"
)

var allSampleKinds = []SampleKind{
	SampleSurfaceSwab,
	SampleFoodItem,
	SamplePersonnelSwab,
	SampleWater,
	SampleOther,
}

// IsSwab reports whether the kind is measured per surface area.
// Swab kinds never bind to a mass/volume regulatory category.
func (k SampleKind) IsSwab() bool {
	return k == SampleSurfaceSwab || k == SamplePersonnelSwab
}

func SampleKindStrings() []string {
	result := make([]string, len(allSampleKinds))
	for i, k := range allSampleKinds {
		result[i] = string(k)
	}
	return result
}

// CanonicalizeSampleKind maps free-form labels (model output, config) onto a SampleKind.
func CanonicalizeSampleKind(input string) (SampleKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return SampleOther, false
	}

	synonyms := map[string]SampleKind{
		"surface":        SampleSurfaceSwab,
		"swab":           SampleSurfaceSwab,
		"surface swab":   SampleSurfaceSwab,
		"surface_swab":   SampleSurfaceSwab,
		"environmental":  SampleSurfaceSwab,
		"tampone":        SampleSurfaceSwab,
		"food":           SampleFoodItem,
		"food item":      SampleFoodItem,
		"food_item":      SampleFoodItem,
		"alimento":       SampleFoodItem,
		"personnel":      SamplePersonnelSwab,
		"personnel swab": SamplePersonnelSwab,
		"personnel_swab": SamplePersonnelSwab,
		"hand swab":      SamplePersonnelSwab,
		"hands":          SamplePersonnelSwab,
		"mani":           SamplePersonnelSwab,
		"acqua":          SampleWater,
		"drinking water": SampleWater,
		"water_sample":   SampleWater,
	}
	if k, ok := synonyms[normalized]; ok {
		return k, true
	}

	for _, k := range allSampleKinds {
		if normalized == string(k) {
			return k, true
		}
	}
	return SampleOther, false
}
