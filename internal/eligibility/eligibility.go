// Package eligibility decides which catalog subjects a student may take based
// on their recorded history. It is the single source of truth for that
// decision: catalog display, direct history additions and selection
// confirmation all evaluate through here.
package eligibility

import (
	"fmt"
	"sort"

	"github.com/uniplan/enrollment-api/internal/models"
)

// Status reasons shown when a subject already appears in the history.
const (
	reasonApproved    = "subject already approved, you cannot enroll again"
	reasonInProgress  = "you are currently taking this subject"
	reasonExamPending = "course completed, final exam still pending"
	reasonPending     = "subject already recorded as pending in your history"

	unresolvedPrereqName = "prerequisite subject not found"
)

// SubjectKey canonicalizes a subject reference to a comparable string key.
// References arrive in several shapes depending on whether the storage layer
// resolved them: a raw id, a populated Subject, a prerequisite or a history
// entry. Nil references yield the empty key.
func SubjectKey(ref any) string {
	switch v := ref.(type) {
	case nil:
		return ""
	case string:
		return v
	case models.Subject:
		return v.ID
	case *models.Subject:
		if v == nil {
			return ""
		}
		return v.ID
	case models.Prerequisite:
		if v.Subject != nil {
			return v.Subject.ID
		}
		return v.SubjectID
	case models.HistoryEntry:
		if v.Subject != nil {
			return v.Subject.ID
		}
		return v.SubjectID
	case *models.HistoryEntry:
		if v == nil {
			return ""
		}
		return SubjectKey(*v)
	default:
		return fmt.Sprint(ref)
	}
}

func findEntry(history []models.HistoryEntry, key string) *models.HistoryEntry {
	if key == "" {
		return nil
	}
	for i := range history {
		if SubjectKey(history[i]) == key {
			return &history[i]
		}
	}
	return nil
}

// Evaluate decides whether the student may take the subject and explains why
// not. A recorded history entry in any state blocks re-enrollment regardless
// of prerequisites; otherwise each prerequisite is checked one level deep
// against the history, and reasons follow the declared prerequisite order.
func Evaluate(subject models.Subject, history []models.HistoryEntry) models.EligibilityResult {
	if entry := findEntry(history, SubjectKey(subject)); entry != nil {
		var reason string
		switch entry.Status {
		case models.StatusApproved:
			reason = reasonApproved
		case models.StatusInProgress:
			reason = reasonInProgress
		case models.StatusCourseExamPending:
			reason = reasonExamPending
		case models.StatusPending:
			reason = reasonPending
		}
		if reason != "" {
			return models.EligibilityResult{
				Eligible: false,
				Reasons:  []string{reason},
				Category: models.CategoryAlreadyProcessed,
			}
		}
	}

	if len(subject.Prerequisites) == 0 {
		return models.EligibilityResult{Eligible: true, Reasons: []string{}, Category: models.CategoryEligible}
	}

	reasons := []string{}
	for _, prereq := range subject.Prerequisites {
		entry := findEntry(history, SubjectKey(prereq))
		if unmet(prereq.Type, entry) {
			name := unresolvedPrereqName
			if prereq.Subject != nil && prereq.Subject.Name != "" {
				name = prereq.Subject.Name
			}
			if prereq.Type == models.PrerequisiteExam {
				reasons = append(reasons, fmt.Sprintf("missing exam pass for %s", name))
			} else {
				reasons = append(reasons, fmt.Sprintf("missing course pass for %s", name))
			}
		}
	}

	if len(reasons) > 0 {
		return models.EligibilityResult{Eligible: false, Reasons: reasons, Category: models.CategoryPrerequisitesPending}
	}
	return models.EligibilityResult{Eligible: true, Reasons: reasons, Category: models.CategoryEligible}
}

// unmet applies the prerequisite-type rules: an exam prerequisite needs an
// approved entry, a course prerequisite accepts approved or
// completed_course_exam_pending.
func unmet(typ models.PrerequisiteType, entry *models.HistoryEntry) bool {
	if entry == nil {
		return true
	}
	switch typ {
	case models.PrerequisiteCourse:
		return entry.Status != models.StatusApproved && entry.Status != models.StatusCourseExamPending
	case models.PrerequisiteExam:
		return entry.Status != models.StatusApproved
	}
	return true
}

// ProcessedSet returns the subject keys with a history entry in any
// recognized status.
func ProcessedSet(history []models.HistoryEntry) map[string]struct{} {
	set := make(map[string]struct{}, len(history))
	for _, entry := range history {
		if models.ValidHistoryStatus(entry.Status) {
			set[SubjectKey(entry)] = struct{}{}
		}
	}
	return set
}

// ApprovedSet returns the subject keys whose history entry is approved.
func ApprovedSet(history []models.HistoryEntry) map[string]struct{} {
	set := make(map[string]struct{})
	for _, entry := range history {
		if entry.Status == models.StatusApproved {
			set[SubjectKey(entry)] = struct{}{}
		}
	}
	return set
}

// InProgressIDs returns the subject keys currently being taken.
func InProgressIDs(history []models.HistoryEntry) []string {
	var ids []string
	for _, entry := range history {
		if entry.Status == models.StatusInProgress {
			ids = append(ids, SubjectKey(entry))
		}
	}
	return ids
}

// Annotate evaluates the whole catalog against the student's history and
// attaches the processed/approved/in-process flags. The result is a snapshot;
// callers must not treat it as live data.
func Annotate(subjects []models.Subject, history []models.HistoryEntry) []models.AnnotatedSubject {
	processed := ProcessedSet(history)
	approved := ApprovedSet(history)

	annotated := make([]models.AnnotatedSubject, 0, len(subjects))
	for _, subject := range subjects {
		result := Evaluate(subject, history)
		key := SubjectKey(subject)
		_, isProcessed := processed[key]
		_, isApproved := approved[key]

		annotated = append(annotated, models.AnnotatedSubject{
			Subject:     subject,
			Eligible:    result.Eligible,
			Reasons:     result.Reasons,
			IsApproved:  isApproved,
			IsInProcess: isProcessed && !isApproved,
		})
	}
	return annotated
}

// GroupBySemester buckets annotated subjects by semester, preserving input
// order within each bucket, and lists the semesters in ascending order.
func GroupBySemester(annotated []models.AnnotatedSubject) (map[int][]models.AnnotatedSubject, []int) {
	grouped := make(map[int][]models.AnnotatedSubject)
	for _, subject := range annotated {
		grouped[subject.Semester] = append(grouped[subject.Semester], subject)
	}

	semesters := make([]int, 0, len(grouped))
	for semester := range grouped {
		semesters = append(semesters, semester)
	}
	sort.Ints(semesters)
	return grouped, semesters
}

// BySemester partitions each semester's subjects into the three eligibility
// categories used by the eligibility-checker view.
func BySemester(subjects []models.Subject, history []models.HistoryEntry) map[int]*models.SemesterEligibility {
	partition := make(map[int]*models.SemesterEligibility)
	for _, subject := range subjects {
		result := Evaluate(subject, history)
		bucket, ok := partition[subject.Semester]
		if !ok {
			bucket = &models.SemesterEligibility{}
			partition[subject.Semester] = bucket
		}

		annotated := models.AnnotatedSubject{Subject: subject, Eligible: result.Eligible, Reasons: result.Reasons}
		switch result.Category {
		case models.CategoryEligible:
			bucket.Eligible = append(bucket.Eligible, annotated)
		case models.CategoryAlreadyProcessed:
			bucket.AlreadyProcessed = append(bucket.AlreadyProcessed, annotated)
		case models.CategoryPrerequisitesPending:
			bucket.PrerequisitesPending = append(bucket.PrerequisitesPending, annotated)
		}
	}
	return partition
}
