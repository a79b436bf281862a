package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/models"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
)

type mockHistoryRepo struct {
	entries       []models.HistoryEntry
	entryByID     *models.HistoryEntry
	created       *models.HistoryEntry
	createErr     error
	updatedStatus models.HistoryStatus
	updatedCredit int
	updateErr     error
}

func (m *mockHistoryRepo) ListByStudent(ctx context.Context, studentID string) ([]models.HistoryEntry, error) {
	return m.entries, nil
}

func (m *mockHistoryRepo) FindByID(ctx context.Context, id string) (*models.HistoryEntry, error) {
	if m.entryByID == nil {
		return nil, sql.ErrNoRows
	}
	return m.entryByID, nil
}

func (m *mockHistoryRepo) Create(ctx context.Context, entry *models.HistoryEntry) error {
	if m.createErr != nil {
		return m.createErr
	}
	entry.ID = "entry-1"
	m.created = entry
	return nil
}

func (m *mockHistoryRepo) UpdateStatus(ctx context.Context, id string, status models.HistoryStatus, creditsEarned int) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedStatus = status
	m.updatedCredit = creditsEarned
	return nil
}

type mockHistorySubjectReader struct {
	subjects map[string]*models.Subject
}

func (m *mockHistorySubjectReader) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

func historySubject(id string, credits, semester int, prereqs ...models.Prerequisite) *models.Subject {
	return &models.Subject{ID: id, Name: id, Credits: credits, Semester: semester, Prerequisites: prereqs}
}

func TestHistoryViewGroupsAndTotals(t *testing.T) {
	repo := &mockHistoryRepo{entries: []models.HistoryEntry{
		{SubjectID: "alg", Semester: 1, Status: models.StatusApproved, CreditsEarned: 6},
		{SubjectID: "phy", Semester: 1, Status: models.StatusInProgress},
		{SubjectID: "sta", Semester: 2, Status: models.StatusApproved, CreditsEarned: 4},
	}}
	svc := NewHistoryService(repo, &mockHistorySubjectReader{}, nil, validator.New(), zap.NewNop())

	view, err := svc.View(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, view.Semesters)
	assert.Len(t, view.BySemester[1], 2)
	assert.Len(t, view.BySemester[2], 1)
	assert.Equal(t, 10, view.TotalCredits)
}

func TestHistoryAddApprovedEarnsCredits(t *testing.T) {
	repo := &mockHistoryRepo{}
	subjects := &mockHistorySubjectReader{subjects: map[string]*models.Subject{
		"alg": historySubject("alg", 6, 1),
	}}
	svc := NewHistoryService(repo, subjects, nil, validator.New(), zap.NewNop())

	entry, err := svc.Add(context.Background(), "student-1", AddHistoryRequest{SubjectID: "alg", Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, entry.Status)
	assert.Equal(t, 6, entry.CreditsEarned)
	assert.Equal(t, 1, entry.Semester)
	require.NotNil(t, repo.created)
}

func TestHistoryAddNonApprovedEarnsNothing(t *testing.T) {
	repo := &mockHistoryRepo{}
	subjects := &mockHistorySubjectReader{subjects: map[string]*models.Subject{
		"alg": historySubject("alg", 6, 1),
	}}
	svc := NewHistoryService(repo, subjects, nil, validator.New(), zap.NewNop())

	entry, err := svc.Add(context.Background(), "student-1", AddHistoryRequest{SubjectID: "alg", Status: "in_progress"})
	require.NoError(t, err)
	assert.Zero(t, entry.CreditsEarned)
}

func TestHistoryAddBlockedByEligibility(t *testing.T) {
	subjects := &mockHistorySubjectReader{subjects: map[string]*models.Subject{
		"adv": historySubject("adv", 6, 2, models.Prerequisite{
			SubjectID: "alg",
			Type:      models.PrerequisiteExam,
			Subject:   &models.Subject{ID: "alg", Name: "Algebra"},
		}),
	}}
	svc := NewHistoryService(&mockHistoryRepo{}, subjects, nil, validator.New(), zap.NewNop())

	_, err := svc.Add(context.Background(), "student-1", AddHistoryRequest{SubjectID: "adv", Status: "in_progress"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "missing exam pass for Algebra")
}

func TestHistoryAddDuplicateBlocked(t *testing.T) {
	repo := &mockHistoryRepo{entries: []models.HistoryEntry{
		{SubjectID: "alg", Status: models.StatusApproved},
	}}
	subjects := &mockHistorySubjectReader{subjects: map[string]*models.Subject{
		"alg": historySubject("alg", 6, 1),
	}}
	svc := NewHistoryService(repo, subjects, nil, validator.New(), zap.NewNop())

	_, err := svc.Add(context.Background(), "student-1", AddHistoryRequest{SubjectID: "alg", Status: "in_progress"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestHistoryAddUnknownSubject(t *testing.T) {
	svc := NewHistoryService(&mockHistoryRepo{}, &mockHistorySubjectReader{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Add(context.Background(), "student-1", AddHistoryRequest{SubjectID: "ghost", Status: "pending"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHistoryAddInvalidStatus(t *testing.T) {
	svc := NewHistoryService(&mockHistoryRepo{}, &mockHistorySubjectReader{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Add(context.Background(), "student-1", AddHistoryRequest{SubjectID: "alg", Status: "graduated"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestHistoryUpdateStatusApprovedIsImmutable(t *testing.T) {
	repo := &mockHistoryRepo{entryByID: &models.HistoryEntry{
		ID:        "entry-1",
		StudentID: "student-1",
		SubjectID: "alg",
		Status:    models.StatusApproved,
	}}
	svc := NewHistoryService(repo, &mockHistorySubjectReader{}, nil, validator.New(), zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "student-1", "entry-1", UpdateHistoryStatusRequest{Status: "pending"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Equal(t, "approved subjects cannot be edited", appErr.Message)
}

func TestHistoryUpdateStatusWrongStudentLooksLikeNotFound(t *testing.T) {
	repo := &mockHistoryRepo{entryByID: &models.HistoryEntry{
		ID:        "entry-1",
		StudentID: "someone-else",
		Status:    models.StatusPending,
	}}
	svc := NewHistoryService(repo, &mockHistorySubjectReader{}, nil, validator.New(), zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "student-1", "entry-1", UpdateHistoryStatusRequest{Status: "approved"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHistoryUpdateStatusToApprovedSetsCredits(t *testing.T) {
	repo := &mockHistoryRepo{entryByID: &models.HistoryEntry{
		ID:        "entry-1",
		StudentID: "student-1",
		SubjectID: "alg",
		Status:    models.StatusCourseExamPending,
	}}
	subjects := &mockHistorySubjectReader{subjects: map[string]*models.Subject{
		"alg": historySubject("alg", 6, 1),
	}}
	svc := NewHistoryService(repo, subjects, nil, validator.New(), zap.NewNop())

	entry, err := svc.UpdateStatus(context.Background(), "student-1", "entry-1", UpdateHistoryStatusRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, entry.Status)
	assert.Equal(t, 6, entry.CreditsEarned)
	assert.Equal(t, models.StatusApproved, repo.updatedStatus)
	assert.Equal(t, 6, repo.updatedCredit)
}
