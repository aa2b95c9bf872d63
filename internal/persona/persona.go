// Package persona describes the simulated instructor that steers prompt tone.
package persona

// TeachingMode selects one of the canned teaching-style prompt blocks.
// Matching is exact and case-sensitive; any other value means the default
// (virtual classroom) style.
type TeachingMode string

const (
	Socratic  TeachingMode = "Socratic"
	Practical TeachingMode = "Practical"
	Virtual   TeachingMode = "Virtual"
)

// Persona is supplied by the caller on every request and never stored.
type Persona struct {
	Name         string       `json:"name" validate:"required"`
	Field        string       `json:"field" validate:"required"`
	TeachingMode TeachingMode `json:"teachingMode"`
	AdviceType   string       `json:"adviceType"`
}
