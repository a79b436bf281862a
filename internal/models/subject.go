package models

import "time"

// Valid weekdays for schedule slots. The catalog only offers weekday classes.
const (
	DayMonday    = "Monday"
	DayTuesday   = "Tuesday"
	DayWednesday = "Wednesday"
	DayThursday  = "Thursday"
	DayFriday    = "Friday"
)

// Weekdays lists the accepted slot days in calendar order.
var Weekdays = []string{DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday}

// ScheduleSlot is a weekly class hour, with Time in "HH:MM-HH:MM" form.
type ScheduleSlot struct {
	Day  string `db:"day" json:"day"`
	Time string `db:"time_range" json:"time"`
}

// PrerequisiteType distinguishes how far a prerequisite must be completed.
type PrerequisiteType string

const (
	// PrerequisiteExam requires the prerequisite subject to be fully approved.
	PrerequisiteExam PrerequisiteType = "exam"
	// PrerequisiteCourse is satisfied once the course part is completed,
	// even with the final exam still pending.
	PrerequisiteCourse PrerequisiteType = "course"
)

// Prerequisite links a subject to one it depends on. Subject is populated
// when the catalog is loaded with resolved references; SubjectID is always set.
type Prerequisite struct {
	SubjectID string           `db:"prereq_subject_id" json:"subject_id"`
	Type      PrerequisiteType `db:"prereq_type" json:"type"`
	Subject   *Subject         `db:"-" json:"subject,omitempty"`
}

// Subject represents a catalog entry in the study plan.
type Subject struct {
	ID            string         `db:"id" json:"id"`
	Code          string         `db:"code" json:"code"`
	Name          string         `db:"name" json:"name"`
	Credits       int            `db:"credits" json:"credits"`
	Semester      int            `db:"semester" json:"semester"`
	Schedule      []ScheduleSlot `db:"-" json:"schedule"`
	Prerequisites []Prerequisite `db:"-" json:"prerequisites"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Semester  int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ScheduleConflict reports two subjects whose weekly slots collide.
type ScheduleConflict struct {
	SubjectA string `json:"subject_a"`
	SubjectB string `json:"subject_b"`
	Day      string `json:"day"`
	TimeA    string `json:"time_a"`
	TimeB    string `json:"time_b"`
}
