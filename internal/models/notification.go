package models

// SubjectCreatedEvent is published best-effort when an admin adds a subject.
type SubjectCreatedEvent struct {
	SubjectID string `json:"subject_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Credits   int    `json:"credits"`
	Semester  int    `json:"semester"`
	Message   string `json:"message"`
}
