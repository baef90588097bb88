package entity

// TextFragment is one positioned piece of extracted text. Immutable once created.
type TextFragment struct {
	SourceLabel string `json:"source_label"`
	Ordinal     int    `json:"ordinal"`
	Content     string `json:"content"`
}

// ParameterReading is one (parameter, result, unit, method) row of a report.
// Duplicates are legal and are all evaluated.
type ParameterReading struct {
	ParameterName string `json:"parameter_name"`
	ResultText    string `json:"result_text"`
	UnitText      string `json:"unit_text"`
	MethodText    string `json:"method_text"`
}

// Empty reports whether every field is blank.
func (r ParameterReading) Empty() bool {
	return isBlank(r.ParameterName) && isBlank(r.ResultText) && isBlank(r.UnitText) && isBlank(r.MethodText)
}
