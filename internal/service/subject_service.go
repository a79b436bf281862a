package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/timeslot"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/export"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	ListAll(ctx context.Context) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListSlotsBySemester(ctx context.Context, semester int, excludeID string) ([]models.ScheduleSlot, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectNotifier interface {
	SubjectCreated(subject models.Subject)
}

// ScheduleSlotRequest is one weekly class hour in a subject payload.
type ScheduleSlotRequest struct {
	Day  string `json:"day" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday"`
	Time string `json:"time" validate:"required"`
}

// PrerequisiteRequest links the new subject to an existing one.
type PrerequisiteRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=exam course"`
}

// CreateSubjectRequest captures fields for creating subjects.
type CreateSubjectRequest struct {
	Code          string                `json:"code" validate:"required"`
	Name          string                `json:"name" validate:"required"`
	Credits       *int                  `json:"credits" validate:"required,gte=0"`
	Semester      int                   `json:"semester" validate:"required,gte=1"`
	Schedule      []ScheduleSlotRequest `json:"schedule" validate:"dive"`
	Prerequisites []PrerequisiteRequest `json:"prerequisites" validate:"dive"`
}

// UpdateSubjectRequest modifies subject fields.
type UpdateSubjectRequest struct {
	Code          string                `json:"code" validate:"required"`
	Name          string                `json:"name" validate:"required"`
	Credits       *int                  `json:"credits" validate:"required,gte=0"`
	Semester      int                   `json:"semester" validate:"required,gte=1"`
	Schedule      []ScheduleSlotRequest `json:"schedule" validate:"dive"`
	Prerequisites []PrerequisiteRequest `json:"prerequisites" validate:"dive"`
}

// StudyPlan is the admin view of the whole catalog grouped by semester.
type StudyPlan struct {
	BySemester map[int][]models.Subject `json:"by_semester"`
	Semesters  []int                    `json:"semesters"`
}

// SubjectService handles catalog management workflows.
type SubjectService struct {
	repo      subjectRepository
	notifier  subjectNotifier
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, notifier subjectNotifier, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{
		repo:      repo,
		notifier:  notifier,
		cache:     cache,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
	}
}

// List returns paginated subjects.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return subjects, pagination, nil
}

// Get returns one subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create validates and persists a new subject, then announces it.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.buildSubject(ctx, "", req.Code, req.Name, *req.Credits, req.Semester, req.Schedule, req.Prerequisites)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	s.logger.Info("subject created",
		zap.String("subject_id", subject.ID),
		zap.String("code", subject.Code),
		zap.Int("semester", subject.Semester))

	if s.notifier != nil {
		s.notifier.SubjectCreated(*subject)
	}
	s.invalidateCatalogCache(ctx)

	return s.Get(ctx, subject.ID)
}

// Update validates and persists changes to an existing subject.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.buildSubject(ctx, id, req.Code, req.Name, *req.Credits, req.Semester, req.Schedule, req.Prerequisites)
	if err != nil {
		return nil, err
	}
	subject.ID = id

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}

	s.logger.Info("subject updated", zap.String("subject_id", id), zap.String("code", subject.Code))
	s.invalidateCatalogCache(ctx)

	return s.Get(ctx, id)
}

// Delete removes a subject from the catalog.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	s.logger.Info("subject deleted", zap.String("subject_id", id))
	s.invalidateCatalogCache(ctx)
	return nil
}

// Plan returns the full study plan grouped by semester.
func (s *SubjectService) Plan(ctx context.Context) (*StudyPlan, error) {
	subjects, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study plan")
	}

	grouped := make(map[int][]models.Subject)
	for _, subject := range subjects {
		grouped[subject.Semester] = append(grouped[subject.Semester], subject)
	}
	semesters := make([]int, 0, len(grouped))
	for semester := range grouped {
		semesters = append(semesters, semester)
	}
	sort.Ints(semesters)

	return &StudyPlan{BySemester: grouped, Semesters: semesters}, nil
}

// ExportPlan renders the study plan as CSV or PDF bytes.
func (s *SubjectService) ExportPlan(ctx context.Context, format string) ([]byte, string, error) {
	plan, err := s.Plan(ctx)
	if err != nil {
		return nil, "", err
	}

	table := export.Table{Columns: []string{"Semester", "Code", "Name", "Credits", "Schedule", "Prerequisites"}}
	for _, semester := range plan.Semesters {
		section := export.Section{Heading: fmt.Sprintf("Semester %d", semester)}
		for _, subject := range plan.BySemester[semester] {
			slots := make([]string, 0, len(subject.Schedule))
			for _, slot := range subject.Schedule {
				slots = append(slots, fmt.Sprintf("%s %s", slot.Day, slot.Time))
			}
			prereqs := make([]string, 0, len(subject.Prerequisites))
			for _, prereq := range subject.Prerequisites {
				name := prereq.SubjectID
				if prereq.Subject != nil {
					name = prereq.Subject.Name
				}
				prereqs = append(prereqs, fmt.Sprintf("%s (%s)", name, prereq.Type))
			}
			section.Rows = append(section.Rows, []string{
				fmt.Sprintf("%d", subject.Semester),
				subject.Code,
				subject.Name,
				fmt.Sprintf("%d", subject.Credits),
				strings.Join(slots, "; "),
				strings.Join(prereqs, "; "),
			})
		}
		table.Sections = append(table.Sections, section)
	}

	switch format {
	case "pdf":
		payload, err := s.pdf.Render(table, "Study Plan")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render study plan")
		}
		return payload, "application/pdf", nil
	case "csv", "":
		payload, err := s.csv.Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render study plan")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format, use csv or pdf")
	}
}

// buildSubject validates schedule and prerequisites and assembles the record.
// Parser failures are surfaced verbatim: their messages are already
// user-meaningful.
func (s *SubjectService) buildSubject(ctx context.Context, excludeID, code, name string, credits, semester int, slots []ScheduleSlotRequest, prereqs []PrerequisiteRequest) (*models.Subject, error) {
	schedule := make([]models.ScheduleSlot, 0, len(slots))
	for _, slot := range slots {
		trimmed := strings.TrimSpace(slot.Time)
		if _, err := timeslot.ParseRange(trimmed); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		schedule = append(schedule, models.ScheduleSlot{Day: strings.TrimSpace(slot.Day), Time: trimmed})
	}

	exists, err := s.repo.ExistsByCode(ctx, strings.TrimSpace(code), excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject code already in use")
	}

	if len(schedule) > 0 {
		existing, err := s.repo.ListSlotsBySemester(ctx, semester, excludeID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester schedules")
		}
		overlap, err := timeslot.HasRegistrationOverlap(schedule, existing)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		if overlap {
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule conflict with another subject in the same semester")
		}
	}

	prerequisites := make([]models.Prerequisite, 0, len(prereqs))
	for _, prereq := range prereqs {
		if prereq.SubjectID == "" {
			continue
		}
		if _, err := s.repo.FindByID(ctx, prereq.SubjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "prerequisite subject not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve prerequisite")
		}
		prerequisites = append(prerequisites, models.Prerequisite{
			SubjectID: prereq.SubjectID,
			Type:      models.PrerequisiteType(prereq.Type),
		})
	}

	return &models.Subject{
		Code:          strings.TrimSpace(code),
		Name:          strings.TrimSpace(name),
		Credits:       credits,
		Semester:      semester,
		Schedule:      schedule,
		Prerequisites: prerequisites,
	}, nil
}

func (s *SubjectService) invalidateCatalogCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, "catalog:*")
}
