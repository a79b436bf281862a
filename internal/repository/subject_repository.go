package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniplan/enrollment-api/internal/models"
)

// SubjectRepository handles persistence for subjects, their weekly schedule
// slots and their prerequisite links.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectColumns = "id, code, name, credits, semester, created_at, updated_at"

// List returns subjects matching filters with pagination metadata. Schedule
// and prerequisites are resolved for the returned page.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	base := "FROM subjects WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(code) LIKE $%d OR LOWER(name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"code":     true,
		"name":     true,
		"semester": true,
		"credits":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "semester"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, name ASC LIMIT %d OFFSET %d", subjectColumns, base, sortBy, order, size, offset)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	if err := r.attachDetails(ctx, subjects); err != nil {
		return nil, 0, err
	}
	return subjects, total, nil
}

// ListAll returns the full catalog ordered by semester then name, with
// schedule slots and resolved prerequisite subjects attached.
func (r *SubjectRepository) ListAll(ctx context.Context) ([]models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects ORDER BY semester ASC, name ASC", subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list all subjects: %w", err)
	}
	if err := r.attachDetails(ctx, subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// FindByID returns a subject by id with schedule and prerequisites.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	subjects := []models.Subject{subject}
	if err := r.attachDetails(ctx, subjects); err != nil {
		return nil, err
	}
	return &subjects[0], nil
}

// FindByIDs returns the existing subjects among the requested ids, with
// details resolved. Missing ids are simply absent from the result.
func (r *SubjectRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM subjects WHERE id IN (?) ORDER BY semester ASC, name ASC", subjectColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build subjects query: %w", err)
	}
	query = r.db.Rebind(query)

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("find subjects by ids: %w", err)
	}
	if err := r.attachDetails(ctx, subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// ListSlotsBySemester returns the flattened schedule slots of every subject
// in the semester, excluding one subject (used when editing it).
func (r *SubjectRepository) ListSlotsBySemester(ctx context.Context, semester int, excludeID string) ([]models.ScheduleSlot, error) {
	query := `SELECT ss.day, ss.time_range FROM subject_schedule ss
		JOIN subjects s ON s.id = ss.subject_id
		WHERE s.semester = $1`
	args := []interface{}{semester}
	if excludeID != "" {
		query += " AND s.id <> $2"
		args = append(args, excludeID)
	}
	query += " ORDER BY ss.subject_id, ss.position"

	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list semester slots: %w", err)
	}
	return slots, nil
}

// ExistsByCode checks uniqueness of subject code.
func (r *SubjectRepository) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM subjects WHERE LOWER(code) = LOWER($1)"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return true, nil
}

// Create persists a new subject together with its slots and prerequisites.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create subject: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO subjects (id, code, name, credits, semester, created_at, updated_at)
		VALUES (:id, :code, :name, :credits, :semester, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	if err := insertDetails(ctx, tx, subject); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create subject: %w", err)
	}
	return nil
}

// Update modifies a subject, replacing its slots and prerequisites.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update subject: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE subjects SET code = :code, name = :name, credits = :credits, semester = :semester, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subject_schedule WHERE subject_id = $1`, subject.ID); err != nil {
		return fmt.Errorf("clear subject schedule: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subject_prerequisites WHERE subject_id = $1`, subject.ID); err != nil {
		return fmt.Errorf("clear subject prerequisites: %w", err)
	}
	if err := insertDetails(ctx, tx, subject); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update subject: %w", err)
	}
	return nil
}

// Delete removes a subject record. Slots and prerequisite links cascade.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}

func insertDetails(ctx context.Context, tx *sqlx.Tx, subject *models.Subject) error {
	for i, slot := range subject.Schedule {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subject_schedule (subject_id, position, day, time_range) VALUES ($1, $2, $3, $4)`,
			subject.ID, i, slot.Day, slot.Time); err != nil {
			return fmt.Errorf("insert schedule slot: %w", err)
		}
	}
	for i, prereq := range subject.Prerequisites {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subject_prerequisites (subject_id, position, prereq_subject_id, prereq_type) VALUES ($1, $2, $3, $4)`,
			subject.ID, i, prereq.SubjectID, prereq.Type); err != nil {
			return fmt.Errorf("insert prerequisite: %w", err)
		}
	}
	return nil
}

type slotRow struct {
	SubjectID string `db:"subject_id"`
	Day       string `db:"day"`
	Time      string `db:"time_range"`
}

type prereqRow struct {
	SubjectID   string                  `db:"subject_id"`
	PrereqID    string                  `db:"prereq_subject_id"`
	Type        models.PrerequisiteType `db:"prereq_type"`
	PrereqName  *string                 `db:"prereq_name"`
	PrereqSem   *int                    `db:"prereq_semester"`
	PrereqCreds *int                    `db:"prereq_credits"`
}

// attachDetails loads schedule slots and resolved prerequisites for the given
// subjects in two IN queries.
func (r *SubjectRepository) attachDetails(ctx context.Context, subjects []models.Subject) error {
	if len(subjects) == 0 {
		return nil
	}

	index := make(map[string]*models.Subject, len(subjects))
	ids := make([]string, 0, len(subjects))
	for i := range subjects {
		subjects[i].Schedule = []models.ScheduleSlot{}
		subjects[i].Prerequisites = []models.Prerequisite{}
		index[subjects[i].ID] = &subjects[i]
		ids = append(ids, subjects[i].ID)
	}

	slotQuery, slotArgs, err := sqlx.In(`SELECT subject_id, day, time_range FROM subject_schedule WHERE subject_id IN (?) ORDER BY subject_id, position`, ids)
	if err != nil {
		return fmt.Errorf("build slots query: %w", err)
	}
	var slots []slotRow
	if err := r.db.SelectContext(ctx, &slots, r.db.Rebind(slotQuery), slotArgs...); err != nil {
		return fmt.Errorf("load schedule slots: %w", err)
	}
	for _, row := range slots {
		if subject, ok := index[row.SubjectID]; ok {
			subject.Schedule = append(subject.Schedule, models.ScheduleSlot{Day: row.Day, Time: row.Time})
		}
	}

	prereqQuery, prereqArgs, err := sqlx.In(`SELECT sp.subject_id, sp.prereq_subject_id, sp.prereq_type,
			s.name AS prereq_name, s.semester AS prereq_semester, s.credits AS prereq_credits
		FROM subject_prerequisites sp
		LEFT JOIN subjects s ON s.id = sp.prereq_subject_id
		WHERE sp.subject_id IN (?) ORDER BY sp.subject_id, sp.position`, ids)
	if err != nil {
		return fmt.Errorf("build prerequisites query: %w", err)
	}
	var prereqs []prereqRow
	if err := r.db.SelectContext(ctx, &prereqs, r.db.Rebind(prereqQuery), prereqArgs...); err != nil {
		return fmt.Errorf("load prerequisites: %w", err)
	}
	for _, row := range prereqs {
		subject, ok := index[row.SubjectID]
		if !ok {
			continue
		}
		prereq := models.Prerequisite{SubjectID: row.PrereqID, Type: row.Type}
		if row.PrereqName != nil {
			resolved := &models.Subject{ID: row.PrereqID, Name: *row.PrereqName}
			if row.PrereqSem != nil {
				resolved.Semester = *row.PrereqSem
			}
			if row.PrereqCreds != nil {
				resolved.Credits = *row.PrereqCreds
			}
			prereq.Subject = resolved
		}
		subject.Prerequisites = append(subject.Prerequisites, prereq)
	}

	return nil
}
