package student

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"student-registry/internal/apperr"

	"github.com/go-playground/validator/v10"
)

// sortColumns maps the JSON field names clients sort by to table columns.
// Anything else is rejected before it reaches the query builder.
var sortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"age":        "age",
	"gender":     "gender",
	"major":      "major",
	"className":  "class_name",
	"email":      "email",
	"createTime": "create_time",
	"updateTime": "update_time",
}

type Service interface {
	CreateStudent(ctx context.Context, student *Student) (*Student, error)
	CreateStudents(ctx context.Context, students []Student) ([]Student, error)
	GetAllStudents(ctx context.Context) ([]Student, error)
	GetStudentByID(ctx context.Context, id int) (*Student, error)
	GetStudentsPage(ctx context.Context, req PageRequest) (*Page, error)
	UpdateStudent(ctx context.Context, id int, req UpdateRequest) (*Student, error)
	DeleteStudent(ctx context.Context, id int) error
	DeleteStudents(ctx context.Context, ids []int) (int, error)

	GetStudentByEmail(ctx context.Context, email string) (*Student, error)
	SearchStudentsByName(ctx context.Context, name string) ([]Student, error)
	GetStudentsByClassName(ctx context.Context, className string) ([]Student, error)
	GetStudentsByMajor(ctx context.Context, major string) ([]Student, error)
	GetStudentsByGender(ctx context.Context, gender Gender) ([]Student, error)
	GetStudentsByAgeRange(ctx context.Context, minAge, maxAge int) ([]Student, error)
	GetStudentsByClassAndMajor(ctx context.Context, className, major string) ([]Student, error)
	SearchStudentsByKeyword(ctx context.Context, keyword string) ([]Student, error)
	GetStudentsCreatedBetween(ctx context.Context, start, end time.Time) ([]Student, error)
	GetClassRoster(ctx context.Context, className string) ([]Student, error)
	GetOldestStudentsByMajor(ctx context.Context, major string) ([]Student, error)

	CountStudents(ctx context.Context) (int, error)
	CountStudentsByClassName(ctx context.Context, className string) (int, error)
	CountStudentsByMajor(ctx context.Context, major string) (int, error)
	GetMajorStats(ctx context.Context) ([]MajorCount, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	StudentExists(ctx context.Context, id int) (bool, error)
}

type service struct {
	repo      Repository
	publisher Publisher
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService wires the business rules around the repository. publisher may
// be nil when no event broker is configured.
func NewService(repo Repository, publisher Publisher, logger *slog.Logger) Service {
	return &service{
		repo:      repo,
		publisher: publisher,
		validate:  newValidator(),
		logger:    logger,
	}
}

// CreateStudent persists a new record. The emailExists pre-check gives a
// friendly Conflict on the common path; the unique constraint inside the
// store catches the check-then-act race and is translated to the same error.
func (s *service) CreateStudent(ctx context.Context, student *Student) (*Student, error) {
	if err := checkStudent(s.validate, student); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByEmail(ctx, student.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("email %s is already in use", student.Email)
	}

	now := time.Now().UTC()
	student.ID = 0
	student.CreateTime = now
	student.UpdateTime = now

	created, err := s.repo.Insert(ctx, student)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventCreated, created)
	return created, nil
}

// CreateStudents is all-or-nothing: every record is validated and every
// email checked against the current store state before anything is inserted,
// and the insert itself runs in one transaction.
func (s *service) CreateStudents(ctx context.Context, students []Student) ([]Student, error) {
	if len(students) == 0 {
		return nil, apperr.BadArgument("batch must contain at least one student")
	}

	seen := make(map[string]bool, len(students))
	for i := range students {
		if err := checkStudent(s.validate, &students[i]); err != nil {
			if appErr := apperr.As(err); appErr != nil && appErr.Fields != nil {
				prefixed := make(map[string]string, len(appErr.Fields))
				for field, msg := range appErr.Fields {
					prefixed[fmt.Sprintf("[%d].%s", i, field)] = msg
				}
				return nil, apperr.Validation(prefixed)
			}
			return nil, err
		}
		if seen[students[i].Email] {
			return nil, apperr.Conflict("email %s appears more than once in the batch", students[i].Email)
		}
		seen[students[i].Email] = true
	}

	for i := range students {
		exists, err := s.repo.ExistsByEmail(ctx, students[i].Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperr.Conflict("email %s is already in use, batch rejected", students[i].Email)
		}
	}

	now := time.Now().UTC()
	for i := range students {
		students[i].ID = 0
		students[i].CreateTime = now
		students[i].UpdateTime = now
	}

	created, err := s.repo.InsertBatch(ctx, students)
	if err != nil {
		return nil, err
	}

	for i := range created {
		s.publish(ctx, EventCreated, &created[i])
	}
	return created, nil
}

func (s *service) GetAllStudents(ctx context.Context) ([]Student, error) {
	return s.repo.FindAll(ctx)
}

func (s *service) GetStudentByID(ctx context.Context, id int) (*Student, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) GetStudentsPage(ctx context.Context, req PageRequest) (*Page, error) {
	if req.Page < 0 {
		return nil, apperr.BadArgument("page must not be negative")
	}
	if req.Size <= 0 {
		return nil, apperr.BadArgument("size must be positive")
	}

	column, ok := sortColumns[req.SortBy]
	if !ok {
		return nil, apperr.BadArgument("invalid sort field %q", req.SortBy)
	}

	var desc bool
	switch strings.ToUpper(req.SortDirection) {
	case "ASC", "":
		desc = false
	case "DESC":
		desc = true
	default:
		return nil, apperr.BadArgument("invalid sort direction %q, must be ASC or DESC", req.SortDirection)
	}

	students, total, err := s.repo.FindPage(ctx, req.Size, req.Page*req.Size, column, desc)
	if err != nil {
		return nil, err
	}

	return &Page{
		Content:       students,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    (total + req.Size - 1) / req.Size,
	}, nil
}

// UpdateStudent merges the supplied fields onto the stored record, keeps
// createTime, and refreshes updateTime. An email that belongs to a different
// student is a Conflict; the stored record stays untouched on any failure.
func (s *service) UpdateStudent(ctx context.Context, id int, req UpdateRequest) (*Student, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != existing.Email {
		other, err := s.repo.FindByEmail(ctx, *req.Email)
		if err == nil && other.ID != id {
			return nil, apperr.Conflict("email %s is already in use by another student", *req.Email)
		}
		if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
			return nil, err
		}
	}

	req.ApplyTo(existing)
	if err := checkStudent(s.validate, existing); err != nil {
		return nil, err
	}

	existing.UpdateTime = time.Now().UTC()
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.publish(ctx, EventUpdated, existing)
	return existing, nil
}

func (s *service) DeleteStudent(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, EventDeleted, &Student{ID: id})
	return nil
}

// DeleteStudents is best-effort: ids that do not exist are skipped and the
// count of rows actually removed is returned.
func (s *service) DeleteStudents(ctx context.Context, ids []int) (int, error) {
	deleted, err := s.repo.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "batch delete finished", "requested", len(ids), "deleted", deleted)
	return deleted, nil
}

func (s *service) GetStudentByEmail(ctx context.Context, email string) (*Student, error) {
	return s.repo.FindByEmail(ctx, email)
}

func (s *service) SearchStudentsByName(ctx context.Context, name string) ([]Student, error) {
	return s.repo.FindByNameContains(ctx, name)
}

func (s *service) GetStudentsByClassName(ctx context.Context, className string) ([]Student, error) {
	return s.repo.FindByClassName(ctx, className)
}

func (s *service) GetStudentsByMajor(ctx context.Context, major string) ([]Student, error) {
	return s.repo.FindByMajor(ctx, major)
}

func (s *service) GetStudentsByGender(ctx context.Context, gender Gender) ([]Student, error) {
	return s.repo.FindByGender(ctx, gender)
}

func (s *service) GetStudentsByAgeRange(ctx context.Context, minAge, maxAge int) ([]Student, error) {
	return s.repo.FindByAgeRange(ctx, minAge, maxAge)
}

func (s *service) GetStudentsByClassAndMajor(ctx context.Context, className, major string) ([]Student, error) {
	return s.repo.FindByClassAndMajor(ctx, className, major)
}

func (s *service) SearchStudentsByKeyword(ctx context.Context, keyword string) ([]Student, error) {
	return s.repo.SearchByKeyword(ctx, keyword)
}

func (s *service) GetStudentsCreatedBetween(ctx context.Context, start, end time.Time) ([]Student, error) {
	return s.repo.FindByCreateTimeBetween(ctx, start, end)
}

func (s *service) GetClassRoster(ctx context.Context, className string) ([]Student, error) {
	return s.repo.FindByClassNameOrderByName(ctx, className)
}

func (s *service) GetOldestStudentsByMajor(ctx context.Context, major string) ([]Student, error) {
	return s.repo.FindOldestByMajor(ctx, major)
}

func (s *service) CountStudents(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *service) CountStudentsByClassName(ctx context.Context, className string) (int, error) {
	return s.repo.CountByClassName(ctx, className)
}

func (s *service) CountStudentsByMajor(ctx context.Context, major string) (int, error) {
	return s.repo.CountByMajor(ctx, major)
}

func (s *service) GetMajorStats(ctx context.Context) ([]MajorCount, error) {
	return s.repo.CountGroupedByMajor(ctx)
}

func (s *service) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

func (s *service) StudentExists(ctx context.Context, id int) (bool, error) {
	return s.repo.ExistsByID(ctx, id)
}

func (s *service) publish(ctx context.Context, eventType string, student *Student) {
	if s.publisher == nil {
		return
	}

	event := Event{
		Type:       eventType,
		Student:    student,
		StudentID:  student.ID,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, strconv.Itoa(student.ID), event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish student event", "type", eventType, "error", err)
	}
}
