package entity

// CatalogSource tells regulatory categories from user-authored ones.
type CatalogSource string

const (
	SourceRegulatory CatalogSource = "regulatory"
	SourceCustom     CatalogSource = "custom"
)

// LimitSet holds the free-text limit expressions for one parameter.
type LimitSet struct {
	Satisfactory   string `json:"satisfactory,omitempty" yaml:"satisfactory,omitempty"`
	Acceptable     string `json:"acceptable,omitempty" yaml:"acceptable,omitempty"`
	Unsatisfactory string `json:"unsatisfactory,omitempty" yaml:"unsatisfactory,omitempty"`
}

// Empty reports whether no limit text is present at all.
func (l LimitSet) Empty() bool {
	return isBlank(l.Satisfactory) && isBlank(l.Acceptable) && isBlank(l.Unsatisfactory)
}

// CatalogEntry is one parameter definition inside a category.
type CatalogEntry struct {
	ParameterName string   `json:"parameter_name" yaml:"parameter"`
	Limits        LimitSet `json:"limits" yaml:"limits"`
	Method        string   `json:"method,omitempty" yaml:"method,omitempty"`
	Notes         string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Category is a named, ordered set of parameter limits.
type Category struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Source      CatalogSource  `json:"source" yaml:"-"`
	Entries     []CatalogEntry `json:"entries" yaml:"parameters"`
}
