package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"student-registry/internal/apperr"
	"student-registry/internal/metrics"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Repository is the single shared mutable resource of the system. The
// students table carries a unique constraint on email, so the store rejects
// duplicate inserts even when the service-level pre-check raced.
type Repository interface {
	Insert(ctx context.Context, student *Student) (*Student, error)
	InsertBatch(ctx context.Context, students []Student) ([]Student, error)
	Update(ctx context.Context, student *Student) error
	Delete(ctx context.Context, id int) error
	DeleteByIDs(ctx context.Context, ids []int) (int, error)

	FindAll(ctx context.Context) ([]Student, error)
	FindByID(ctx context.Context, id int) (*Student, error)
	FindByEmail(ctx context.Context, email string) (*Student, error)
	FindPage(ctx context.Context, limit, offset int, orderBy string, desc bool) ([]Student, int, error)
	FindByNameContains(ctx context.Context, name string) ([]Student, error)
	FindByClassName(ctx context.Context, className string) ([]Student, error)
	FindByClassNameOrderByName(ctx context.Context, className string) ([]Student, error)
	FindByMajor(ctx context.Context, major string) ([]Student, error)
	FindByGender(ctx context.Context, gender Gender) ([]Student, error)
	FindByAgeRange(ctx context.Context, minAge, maxAge int) ([]Student, error)
	FindByClassAndMajor(ctx context.Context, className, major string) ([]Student, error)
	FindByCreateTimeBetween(ctx context.Context, start, end time.Time) ([]Student, error)
	FindOldestByMajor(ctx context.Context, major string) ([]Student, error)
	SearchByKeyword(ctx context.Context, keyword string) ([]Student, error)

	Count(ctx context.Context) (int, error)
	CountByClassName(ctx context.Context, className string) (int, error)
	CountByMajor(ctx context.Context, major string) (int, error)
	CountGroupedByMajor(ctx context.Context) ([]MajorCount, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByID(ctx context.Context, id int) (bool, error)
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

// translateInsertErr maps a Postgres unique-constraint rejection to Conflict.
// The constraint is the ultimate authority on email uniqueness; the service
// pre-check only exists for a friendlier fast path.
func translateInsertErr(err error, email string) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		if email == "" {
			return apperr.Conflict("duplicate email violates unique constraint")
		}
		return apperr.Conflict("email %s is already in use", email)
	}
	return err
}

func (r *repository) Insert(ctx context.Context, student *Student) (*Student, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(student).Returning("*").Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "students", time.Since(start), err)

	if err != nil {
		return nil, translateInsertErr(err, student.Email)
	}
	return student, nil
}

// InsertBatch runs in a transaction: one duplicate email rolls back the
// whole batch.
func (r *repository) InsertBatch(ctx context.Context, students []Student) ([]Student, error) {
	start := time.Now()
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&students).Returning("*").Exec(ctx)
		return err
	})

	r.metrics.Database.RecordQuery(ctx, "insert", "students", time.Since(start), err)

	if err != nil {
		return nil, translateInsertErr(err, "")
	}
	return students, nil
}

func (r *repository) Update(ctx context.Context, student *Student) error {
	start := time.Now()
	result, err := r.db.NewUpdate().Model(student).WherePK().Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "update", "students", time.Since(start), err)

	if err != nil {
		return translateInsertErr(err, student.Email)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperr.NotFound("student with id %d not found", student.ID)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int) error {
	start := time.Now()
	result, err := r.db.NewDelete().Model((*Student)(nil)).Where("id = ?", id).Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", "students", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperr.NotFound("student with id %d not found", id)
	}
	return nil
}

// DeleteByIDs removes whichever of the given ids exist and reports how many
// rows actually went away. Missing ids are skipped, not errors.
func (r *repository) DeleteByIDs(ctx context.Context, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	start := time.Now()
	result, err := r.db.NewDelete().Model((*Student)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", "students", time.Since(start), err)

	if err != nil {
		return 0, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

func (r *repository) FindAll(ctx context.Context) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	})
}

func (r *repository) FindByID(ctx context.Context, id int) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().Model(student).Where("id = ?", id).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("student with id %d not found", id)
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().Model(student).Where("email = ?", email).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("student with email %s not found", email)
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) FindPage(ctx context.Context, limit, offset int, orderBy string, desc bool) ([]Student, int, error) {
	order := orderBy + " ASC"
	if desc {
		order = orderBy + " DESC"
	}

	start := time.Now()
	var students []Student
	total, err := r.db.NewSelect().
		Model(&students).
		OrderExpr(order).
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

func (r *repository) FindByNameContains(ctx context.Context, name string) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("name LIKE ?", "%"+name+"%")
	})
}

func (r *repository) FindByClassName(ctx context.Context, className string) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("class_name = ?", className)
	})
}

func (r *repository) FindByClassNameOrderByName(ctx context.Context, className string) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("class_name = ?", className).Order("name ASC")
	})
}

func (r *repository) FindByMajor(ctx context.Context, major string) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("major = ?", major)
	})
}

func (r *repository) FindByGender(ctx context.Context, gender Gender) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("gender = ?", gender)
	})
}

func (r *repository) FindByAgeRange(ctx context.Context, minAge, maxAge int) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("age BETWEEN ? AND ?", minAge, maxAge)
	})
}

func (r *repository) FindByClassAndMajor(ctx context.Context, className, major string) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("class_name = ?", className).Where("major = ?", major)
	})
}

func (r *repository) FindByCreateTimeBetween(ctx context.Context, start, end time.Time) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("create_time BETWEEN ? AND ?", start, end)
	})
}

// FindOldestByMajor returns the students holding the maximum age within a
// major (several students can share it).
func (r *repository) FindOldestByMajor(ctx context.Context, major string) ([]Student, error) {
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("major = ?", major).
			Where("age = (SELECT MAX(age) FROM students WHERE major = ?)", major)
	})
}

func (r *repository) SearchByKeyword(ctx context.Context, keyword string) ([]Student, error) {
	pattern := "%" + keyword + "%"
	return r.selectMany(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("name LIKE ?", pattern).WhereOr("email LIKE ?", pattern)
		})
	})
}

func (r *repository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	})
}

func (r *repository) CountByClassName(ctx context.Context, className string) (int, error) {
	return r.count(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("class_name = ?", className)
	})
}

func (r *repository) CountByMajor(ctx context.Context, major string) (int, error) {
	return r.count(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("major = ?", major)
	})
}

func (r *repository) CountGroupedByMajor(ctx context.Context) ([]MajorCount, error) {
	start := time.Now()
	var rows []MajorCount
	err := r.db.NewSelect().
		Model((*Student)(nil)).
		ColumnExpr("major").
		ColumnExpr("COUNT(*) AS count").
		Group("major").
		Order("major ASC").
		Scan(ctx, &rows)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().Model((*Student)(nil)).Where("email = ?", email).Exists(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	return exists, err
}

func (r *repository) ExistsByID(ctx context.Context, id int) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().Model((*Student)(nil)).Where("id = ?", id).Exists(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	return exists, err
}

func (r *repository) selectMany(ctx context.Context, apply func(*bun.SelectQuery) *bun.SelectQuery) ([]Student, error) {
	start := time.Now()
	students := make([]Student, 0)
	err := apply(r.db.NewSelect().Model(&students)).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return students, nil
}

func (r *repository) count(ctx context.Context, apply func(*bun.SelectQuery) *bun.SelectQuery) (int, error) {
	start := time.Now()
	count, err := apply(r.db.NewSelect().Model((*Student)(nil))).Count(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	return count, err
}
