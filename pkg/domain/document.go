package domain

// Document is the structured view produced by the grammar-aware parser.
type Document struct {
	Title   string   `json:"title,omitempty"`
	Actors  []string `json:"actors"`
	Actions []Action `json:"actions"`
	// Lines is the line-level result the document was built alongside.
	Lines ParseResult `json:"lines"`
	// IsFallback is set when the line-level result came from a degraded tier.
	// The engine keeps the previous model in that case.
	IsFallback bool `json:"isFallback,omitempty"`
}

// Validation is a structural report on a description text.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Err returns a *ValidationError when the report is invalid, nil otherwise.
func (v Validation) Err() error {
	if v.Valid {
		return nil
	}
	return &ValidationError{Errors: v.Errors, Warnings: v.Warnings}
}
