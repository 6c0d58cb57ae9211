package domain

// Guardrail is an operator-supplied question/answer pair that steers responses.
type Guardrail struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// IndexedGuardrail is a Guardrail with its current position in the store.
type IndexedGuardrail struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
