package models

// EligibilityCategory classifies why a subject is or is not takeable.
type EligibilityCategory string

const (
	CategoryEligible             EligibilityCategory = "eligible"
	CategoryAlreadyProcessed     EligibilityCategory = "alreadyProcessed"
	CategoryPrerequisitesPending EligibilityCategory = "prerequisitesPending"
)

// EligibilityResult is computed fresh on every query, never persisted.
type EligibilityResult struct {
	Eligible bool                `json:"eligible"`
	Reasons  []string            `json:"reasons"`
	Category EligibilityCategory `json:"category"`
}

// AnnotatedSubject is a catalog entry decorated with the student's standing.
type AnnotatedSubject struct {
	Subject
	Eligible    bool     `json:"eligible"`
	Reasons     []string `json:"reasons"`
	IsApproved  bool     `json:"is_approved"`
	IsInProcess bool     `json:"is_in_process"`
}

// SemesterEligibility partitions one semester's subjects by category.
type SemesterEligibility struct {
	Eligible             []AnnotatedSubject `json:"eligible"`
	AlreadyProcessed     []AnnotatedSubject `json:"already_processed"`
	PrerequisitesPending []AnnotatedSubject `json:"prerequisites_pending"`
}

// AnnotatedCatalog is the full student-facing catalog snapshot.
type AnnotatedCatalog struct {
	Subjects   []AnnotatedSubject         `json:"subjects"`
	BySemester map[int][]AnnotatedSubject `json:"by_semester"`
	Semesters  []int                      `json:"semesters"`
	InProgress []Subject                  `json:"in_progress"`
}
