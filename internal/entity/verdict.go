package entity

import "github.com/joseph-ayodele/lab-compliance/constants"

// ComplianceVerdict is the decision for one (document, parameter, matched limit).
type ComplianceVerdict struct {
	ParameterName    string         `json:"parameter_name"`
	ResultText       string         `json:"result_text"`
	UnitText         string         `json:"unit_text,omitempty"`
	AppliedLimitText string         `json:"applied_limit_text"`
	Band             constants.Band `json:"band"`
	IsCompliant      *bool          `json:"is_compliant"`
	Rationale        string         `json:"rationale"`
	Evidence         []string       `json:"evidence,omitempty"`
	CategoryID       string         `json:"category_id,omitempty"`
	MatchedEntry     string         `json:"matched_entry,omitempty"`
	MatchedBy        string         `json:"matched_by,omitempty"`
}
