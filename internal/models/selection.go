package models

// SelectionSummary is returned when a student proposes a candidate subject
// set. Conflicts are advisory and never block confirmation.
type SelectionSummary struct {
	Selected        []Subject          `json:"selected"`
	Rejected        []string           `json:"rejected,omitempty"`
	InProgress      []Subject          `json:"in_progress"`
	NewCredits      int                `json:"new_credits"`
	TotalLoad       int                `json:"total_load"`
	Conflicts       []ScheduleConflict `json:"conflicts"`
	GlobalConflicts []ScheduleConflict `json:"global_conflicts"`
	Message         string             `json:"message,omitempty"`
}

// ConfirmationResult summarises a committed selection.
type ConfirmationResult struct {
	AddedCount    int      `json:"added_count"`
	AddedSubjects []string `json:"added_subjects"`
	Skipped       []string `json:"skipped,omitempty"`
	Message       string   `json:"message"`
}
