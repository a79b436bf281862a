package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniplan/enrollment-api/internal/models"
)

func subject(id string, prereqs ...models.Prerequisite) models.Subject {
	return models.Subject{ID: id, Name: id, Semester: 1, Prerequisites: prereqs}
}

func entry(subjectID string, status models.HistoryStatus) models.HistoryEntry {
	return models.HistoryEntry{SubjectID: subjectID, Status: status}
}

func coursePrereq(id string) models.Prerequisite {
	return models.Prerequisite{SubjectID: id, Type: models.PrerequisiteCourse, Subject: &models.Subject{ID: id, Name: id}}
}

func examPrereq(id string) models.Prerequisite {
	return models.Prerequisite{SubjectID: id, Type: models.PrerequisiteExam, Subject: &models.Subject{ID: id, Name: id}}
}

func TestEvaluateNoPrerequisitesIsEligible(t *testing.T) {
	result := Evaluate(subject("ALG1"), nil)
	assert.True(t, result.Eligible)
	assert.Empty(t, result.Reasons)
	assert.Equal(t, models.CategoryEligible, result.Category)
}

func TestEvaluateApprovedSubjectBlocksReenrollment(t *testing.T) {
	// A history entry short-circuits before prerequisites are even looked at.
	result := Evaluate(subject("ALG1", examPrereq("MISSING")), []models.HistoryEntry{entry("ALG1", models.StatusApproved)})
	assert.False(t, result.Eligible)
	assert.Equal(t, models.CategoryAlreadyProcessed, result.Category)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, "subject already approved, you cannot enroll again", result.Reasons[0])
}

func TestEvaluateAlreadyProcessedReasons(t *testing.T) {
	cases := []struct {
		status models.HistoryStatus
		reason string
	}{
		{models.StatusInProgress, "you are currently taking this subject"},
		{models.StatusCourseExamPending, "course completed, final exam still pending"},
		{models.StatusPending, "subject already recorded as pending in your history"},
	}
	for _, tc := range cases {
		result := Evaluate(subject("ALG1"), []models.HistoryEntry{entry("ALG1", tc.status)})
		assert.False(t, result.Eligible, string(tc.status))
		assert.Equal(t, models.CategoryAlreadyProcessed, result.Category)
		require.Len(t, result.Reasons, 1)
		assert.Equal(t, tc.reason, result.Reasons[0])
	}
}

func TestEvaluateCoursePrerequisiteAcceptsExamPending(t *testing.T) {
	s := subject("PROG2", coursePrereq("PROG1"))

	result := Evaluate(s, []models.HistoryEntry{entry("PROG1", models.StatusCourseExamPending)})
	assert.True(t, result.Eligible)

	result = Evaluate(s, []models.HistoryEntry{entry("PROG1", models.StatusApproved)})
	assert.True(t, result.Eligible)

	result = Evaluate(s, []models.HistoryEntry{entry("PROG1", models.StatusInProgress)})
	assert.False(t, result.Eligible)
	assert.Equal(t, models.CategoryPrerequisitesPending, result.Category)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, "missing course pass for PROG1", result.Reasons[0])
}

func TestEvaluateExamPrerequisiteRequiresApproved(t *testing.T) {
	s := subject("PROG2", examPrereq("PROG1"))

	result := Evaluate(s, []models.HistoryEntry{entry("PROG1", models.StatusCourseExamPending)})
	assert.False(t, result.Eligible)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, "missing exam pass for PROG1", result.Reasons[0])

	result = Evaluate(s, []models.HistoryEntry{entry("PROG1", models.StatusApproved)})
	assert.True(t, result.Eligible)
}

func TestEvaluateMissingPrerequisiteEntry(t *testing.T) {
	result := Evaluate(subject("PROG2", coursePrereq("PROG1")), nil)
	assert.False(t, result.Eligible)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, "missing course pass for PROG1", result.Reasons[0])
}

func TestEvaluateReasonsFollowDeclaredOrder(t *testing.T) {
	s := subject("THESIS", examPrereq("MATH3"), coursePrereq("STATS2"))
	result := Evaluate(s, nil)
	require.Len(t, result.Reasons, 2)
	assert.Equal(t, "missing exam pass for MATH3", result.Reasons[0])
	assert.Equal(t, "missing course pass for STATS2", result.Reasons[1])
}

func TestEvaluateUnresolvedPrerequisiteName(t *testing.T) {
	// Storage could not resolve the prerequisite subject, the prerequisite
	// still blocks and names a placeholder.
	s := subject("PROG2", models.Prerequisite{SubjectID: "GONE", Type: models.PrerequisiteCourse})
	result := Evaluate(s, nil)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, "missing course pass for prerequisite subject not found", result.Reasons[0])
}

func TestSubjectKeyShapes(t *testing.T) {
	s := models.Subject{ID: "abc"}
	assert.Equal(t, "abc", SubjectKey("abc"))
	assert.Equal(t, "abc", SubjectKey(s))
	assert.Equal(t, "abc", SubjectKey(&s))
	assert.Equal(t, "abc", SubjectKey(models.Prerequisite{SubjectID: "abc"}))
	assert.Equal(t, "res", SubjectKey(models.Prerequisite{SubjectID: "abc", Subject: &models.Subject{ID: "res"}}))
	assert.Equal(t, "abc", SubjectKey(models.HistoryEntry{SubjectID: "abc"}))
	assert.Equal(t, "", SubjectKey(nil))
	assert.Equal(t, "", SubjectKey((*models.Subject)(nil)))
}

func TestProcessedAndApprovedSets(t *testing.T) {
	history := []models.HistoryEntry{
		entry("A", models.StatusApproved),
		entry("B", models.StatusInProgress),
		entry("C", models.HistoryStatus("bogus")),
	}

	processed := ProcessedSet(history)
	assert.Len(t, processed, 2)
	assert.Contains(t, processed, "A")
	assert.Contains(t, processed, "B")

	approved := ApprovedSet(history)
	assert.Len(t, approved, 1)
	assert.Contains(t, approved, "A")

	assert.Equal(t, []string{"B"}, InProgressIDs(history))
}

func TestAnnotateFlags(t *testing.T) {
	subjects := []models.Subject{subject("A"), subject("B"), subject("C")}
	history := []models.HistoryEntry{
		entry("A", models.StatusApproved),
		entry("B", models.StatusInProgress),
	}

	annotated := Annotate(subjects, history)
	require.Len(t, annotated, 3)

	assert.True(t, annotated[0].IsApproved)
	assert.False(t, annotated[0].IsInProcess)
	assert.False(t, annotated[0].Eligible)

	assert.False(t, annotated[1].IsApproved)
	assert.True(t, annotated[1].IsInProcess)

	assert.False(t, annotated[2].IsApproved)
	assert.False(t, annotated[2].IsInProcess)
	assert.True(t, annotated[2].Eligible)
}

func TestGroupBySemester(t *testing.T) {
	annotated := []models.AnnotatedSubject{
		{Subject: models.Subject{ID: "A", Semester: 2}},
		{Subject: models.Subject{ID: "B", Semester: 1}},
		{Subject: models.Subject{ID: "C", Semester: 2}},
	}

	grouped, semesters := GroupBySemester(annotated)
	assert.Equal(t, []int{1, 2}, semesters)
	require.Len(t, grouped[2], 2)
	assert.Equal(t, "A", grouped[2][0].ID)
	assert.Equal(t, "C", grouped[2][1].ID)
}

func TestBySemesterPartition(t *testing.T) {
	subjects := []models.Subject{
		subject("A"),
		subject("B", coursePrereq("A")),
		subject("C"),
	}
	history := []models.HistoryEntry{entry("C", models.StatusApproved)}

	partition := BySemester(subjects, history)
	bucket := partition[1]
	require.NotNil(t, bucket)
	assert.Len(t, bucket.Eligible, 1)
	assert.Len(t, bucket.PrerequisitesPending, 1)
	assert.Len(t, bucket.AlreadyProcessed, 1)
}
