package entity

import (
	"strings"

	"github.com/joseph-ayodele/lab-compliance/constants"
)

// SampleProfile describes what a document tested.
type SampleProfile struct {
	Kind                 constants.SampleKind `json:"sample_kind"`
	ProductLabel         string               `json:"product_label,omitempty"`
	RegulatoryCategoryID *string              `json:"regulatory_category_id,omitempty"`
	Description          string               `json:"description,omitempty"`
	SpecialTags          []string             `json:"special_tags,omitempty"`
}

// DefaultProfile is returned when nothing can be inferred: a swab never binds
// to food-mass limits.
func DefaultProfile() SampleProfile {
	return SampleProfile{Kind: constants.SampleSurfaceSwab}
}

// Enforce clears the category for swab kinds and returns the profile.
func (p SampleProfile) Enforce() SampleProfile {
	if p.Kind == "" {
		p.Kind = constants.SampleOther
	}
	if p.Kind.IsSwab() {
		p.RegulatoryCategoryID = nil
	}
	return p
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
