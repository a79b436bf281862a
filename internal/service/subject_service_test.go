package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/models"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
)

type mockSubjectRepo struct {
	subjects      map[string]*models.Subject
	all           []models.Subject
	codeExists    bool
	semesterSlots []models.ScheduleSlot
	created       *models.Subject
	updated       *models.Subject
	deletedID     string
}

func (m *mockSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	return m.all, len(m.all), nil
}

func (m *mockSubjectRepo) ListAll(ctx context.Context) ([]models.Subject, error) {
	return m.all, nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

func (m *mockSubjectRepo) ListSlotsBySemester(ctx context.Context, semester int, excludeID string) ([]models.ScheduleSlot, error) {
	return m.semesterSlots, nil
}

func (m *mockSubjectRepo) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	return m.codeExists, nil
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = "subject-1"
	m.created = subject
	if m.subjects == nil {
		m.subjects = make(map[string]*models.Subject)
	}
	m.subjects[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	m.updated = subject
	m.subjects[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

type mockNotifier struct {
	announced []models.Subject
}

func (m *mockNotifier) SubjectCreated(subject models.Subject) {
	m.announced = append(m.announced, subject)
}

func intPtr(v int) *int { return &v }

func validCreateRequest() CreateSubjectRequest {
	return CreateSubjectRequest{
		Code:     "ALG101",
		Name:     "Algebra I",
		Credits:  intPtr(6),
		Semester: 1,
		Schedule: []ScheduleSlotRequest{{Day: "Monday", Time: "08:00-10:00"}},
	}
}

func TestSubjectCreateSuccess(t *testing.T) {
	repo := &mockSubjectRepo{}
	notifier := &mockNotifier{}
	svc := NewSubjectService(repo, notifier, nil, validator.New(), zap.NewNop())

	subject, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "ALG101", subject.Code)
	assert.Equal(t, 6, subject.Credits)
	require.Len(t, subject.Schedule, 1)
	assert.Equal(t, "08:00-10:00", subject.Schedule[0].Time)
	require.Len(t, notifier.announced, 1)
	assert.Equal(t, "ALG101", notifier.announced[0].Code)
}

func TestSubjectCreateDuplicateCode(t *testing.T) {
	repo := &mockSubjectRepo{codeExists: true}
	svc := NewSubjectService(repo, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "subject code already in use", appErr.Message)
}

func TestSubjectCreateSemesterScheduleConflict(t *testing.T) {
	repo := &mockSubjectRepo{semesterSlots: []models.ScheduleSlot{
		{Day: models.DayMonday, Time: "09:00-11:00"},
	}}
	svc := NewSubjectService(repo, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "schedule conflict with another subject in the same semester", appErr.Message)
}

func TestSubjectCreateBackToBackSlotsAllowed(t *testing.T) {
	repo := &mockSubjectRepo{semesterSlots: []models.ScheduleSlot{
		{Day: models.DayMonday, Time: "10:00-12:00"},
	}}
	svc := NewSubjectService(repo, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
}

func TestSubjectCreateInvalidTimeRange(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, nil, nil, validator.New(), zap.NewNop())

	req := validCreateRequest()
	req.Schedule = []ScheduleSlotRequest{{Day: "Monday", Time: "10:00-09:00"}}

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "start must come before end")
}

func TestSubjectCreateInvalidDayRejected(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, nil, nil, validator.New(), zap.NewNop())

	req := validCreateRequest()
	req.Schedule = []ScheduleSlotRequest{{Day: "Sunday", Time: "08:00-10:00"}}

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectCreateUnknownPrerequisite(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, nil, nil, validator.New(), zap.NewNop())

	req := validCreateRequest()
	req.Schedule = nil
	req.Prerequisites = []PrerequisiteRequest{{SubjectID: "ghost", Type: "exam"}}

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "prerequisite subject not found", appErr.Message)
}

func TestSubjectGetNotFound(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubjectDelete(t *testing.T) {
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{
		"subject-1": {ID: "subject-1", Code: "ALG101"},
	}}
	svc := NewSubjectService(repo, nil, nil, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "subject-1"))
	assert.Equal(t, "subject-1", repo.deletedID)
}

func TestSubjectPlanGroupsBySemester(t *testing.T) {
	repo := &mockSubjectRepo{all: []models.Subject{
		{ID: "a", Semester: 1},
		{ID: "b", Semester: 2},
		{ID: "c", Semester: 1},
	}}
	svc := NewSubjectService(repo, nil, nil, validator.New(), zap.NewNop())

	plan, err := svc.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, plan.Semesters)
	assert.Len(t, plan.BySemester[1], 2)
}

func TestSubjectExportPlanCSV(t *testing.T) {
	repo := &mockSubjectRepo{all: []models.Subject{
		{
			ID: "a", Code: "ALG101", Name: "Algebra I", Credits: 6, Semester: 1,
			Schedule: []models.ScheduleSlot{{Day: models.DayMonday, Time: "08:00-10:00"}},
		},
	}}
	svc := NewSubjectService(repo, nil, nil, validator.New(), zap.NewNop())

	payload, contentType, err := svc.ExportPlan(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	assert.True(t, strings.Contains(body, "ALG101"))
	assert.True(t, strings.Contains(body, "Monday 08:00-10:00"))
}

func TestSubjectExportPlanPDF(t *testing.T) {
	repo := &mockSubjectRepo{all: []models.Subject{
		{ID: "a", Code: "ALG101", Name: "Algebra I", Credits: 6, Semester: 1},
	}}
	svc := NewSubjectService(repo, nil, nil, validator.New(), zap.NewNop())

	payload, contentType, err := svc.ExportPlan(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.NotEmpty(t, payload)
}

func TestSubjectExportPlanUnsupportedFormat(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, nil, nil, validator.New(), zap.NewNop())

	_, _, err := svc.ExportPlan(context.Background(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
