package models

import "time"

// HistoryStatus tracks how far a student has taken a subject.
type HistoryStatus string

// History statuses, ordered from least to most complete.
const (
	StatusPending           HistoryStatus = "pending"
	StatusInProgress        HistoryStatus = "in_progress"
	StatusCourseExamPending HistoryStatus = "completed_course_exam_pending"
	StatusApproved          HistoryStatus = "approved"
)

// ValidHistoryStatus reports whether s is a recognized status value.
func ValidHistoryStatus(s HistoryStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCourseExamPending, StatusApproved:
		return true
	}
	return false
}

// HistoryEntry records one attempted subject for a student. Semester is a
// snapshot of the subject's semester at entry time; CreditsEarned is non-zero
// only for approved entries.
type HistoryEntry struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	SubjectID     string        `db:"subject_id" json:"subject_id"`
	Status        HistoryStatus `db:"status" json:"status"`
	Semester      int           `db:"semester" json:"semester"`
	CreditsEarned int           `db:"credits_earned" json:"credits_earned"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`

	// Resolved subject reference, populated on detail reads.
	Subject *Subject `db:"-" json:"subject,omitempty"`
}

// HistoryView is the semester-grouped projection of a student's record.
type HistoryView struct {
	BySemester   map[int][]HistoryEntry `json:"by_semester"`
	Semesters    []int                  `json:"semesters"`
	TotalCredits int                    `json:"total_credits"`
}
