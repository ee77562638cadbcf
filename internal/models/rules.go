package models

// MarkerRule maps a sscanf-style pattern to a marker label.
// Labels may reference captured groups as %0..%9.
type MarkerRule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Label   string `json:"label" yaml:"label"`
	Style   string `json:"style,omitempty" yaml:"style,omitempty"` // color hint, e.g. "#d35811"

	// UserDefined is set for rules loaded from a user rule file.
	UserDefined bool `json:"userDefined,omitempty" yaml:"-"`
}

// RulesInfo contains metadata about the active user rule file.
type RulesInfo struct {
	Name         string `json:"name"`
	UploadedAt   string `json:"uploadedAt"`
	RulesCount   int    `json:"rulesCount"`
	BuiltinCount int    `json:"builtinCount"`
}
