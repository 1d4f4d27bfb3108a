package student_test

import (
	"context"
	"testing"
	"time"

	"student-registry/internal/apperr"
	"student-registry/internal/metrics"
	"student-registry/internal/student"
	"student-registry/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStudent(email, name, major, className string, age int, gender student.Gender) *student.Student {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &student.Student{
		Name:       name,
		Age:        age,
		Gender:     gender,
		Major:      major,
		ClassName:  className,
		Email:      email,
		CreateTime: now,
		UpdateTime: now,
	}
}

func TestRepository_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pg := testutil.SetupSharedPostgres(t)
	defer pg.Cleanup(t)

	pg.RunMigrations(t, (*student.Student)(nil))

	repo := student.NewRepository(pg.DB, metrics.NewMock())
	ctx := context.Background()

	t.Run("InsertAndFindByID", func(t *testing.T) {
		testutil.CleanupTables(t, pg.DB, "students")

		created, err := repo.Insert(ctx, seedStudent("zhang@x.com", "Zhang Wei", "CS", "CS-1", 20, student.GenderMale))
		require.NoError(t, err)
		require.NotZero(t, created.ID)

		loaded, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Zhang Wei", loaded.Name)
		assert.Equal(t, "zhang@x.com", loaded.Email)
	})

	t.Run("UniqueConstraintBackstop", func(t *testing.T) {
		testutil.CleanupTables(t, pg.DB, "students")

		_, err := repo.Insert(ctx, seedStudent("dup@x.com", "Zhang Wei", "CS", "CS-1", 20, student.GenderMale))
		require.NoError(t, err)

		// Bypasses any service-level pre-check: the constraint itself rejects
		_, err = repo.Insert(ctx, seedStudent("dup@x.com", "Li Na", "Math", "MA-1", 22, student.GenderFemale))
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("BatchInsertRollsBackOnDuplicate", func(t *testing.T) {
		testutil.CleanupTables(t, pg.DB, "students")

		_, err := repo.Insert(ctx, seedStudent("existing@x.com", "Zhang Wei", "CS", "CS-1", 20, student.GenderMale))
		require.NoError(t, err)

		batch := []student.Student{
			*seedStudent("new1@x.com", "Li Na", "CS", "CS-1", 21, student.GenderFemale),
			*seedStudent("existing@x.com", "Wang Fang", "Math", "MA-1", 22, student.GenderFemale),
		}
		_, err = repo.InsertBatch(ctx, batch)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "transaction must roll back the whole batch")
	})

	t.Run("UpdateMissingRowIsNotFound", func(t *testing.T) {
		testutil.CleanupTables(t, pg.DB, "students")

		ghost := seedStudent("ghost@x.com", "Ghost", "CS", "CS-1", 20, student.GenderMale)
		ghost.ID = 12345
		err := repo.Update(ctx, ghost)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	t.Run("DeleteByIDsSkipsMissing", func(t *testing.T) {
		testutil.CleanupTables(t, pg.DB, "students")

		first, err := repo.Insert(ctx, seedStudent("a@x.com", "Zhang Wei", "CS", "CS-1", 20, student.GenderMale))
		require.NoError(t, err)
		second, err := repo.Insert(ctx, seedStudent("b@x.com", "Li Na", "CS", "CS-1", 21, student.GenderFemale))
		require.NoError(t, err)

		deleted, err := repo.DeleteByIDs(ctx, []int{first.ID, second.ID, 9999})
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("DerivedQueries", func(t *testing.T) {
		testutil.CleanupTables(t, pg.DB, "students")

		_, err := repo.Insert(ctx, seedStudent("zhang@x.com", "Zhang Wei", "CS", "CS-1", 20, student.GenderMale))
		require.NoError(t, err)
		_, err = repo.Insert(ctx, seedStudent("li@x.com", "Li Na", "CS", "CS-1", 22, student.GenderFemale))
		require.NoError(t, err)
		_, err = repo.Insert(ctx, seedStudent("wang@x.com", "Wang Fang", "Math", "MA-1", 25, student.GenderFemale))
		require.NoError(t, err)

		byClass, err := repo.FindByClassName(ctx, "CS-1")
		require.NoError(t, err)
		assert.Len(t, byClass, 2)

		roster, err := repo.FindByClassNameOrderByName(ctx, "CS-1")
		require.NoError(t, err)
		require.Len(t, roster, 2)
		assert.Equal(t, "Li Na", roster[0].Name)

		byGender, err := repo.FindByGender(ctx, student.GenderFemale)
		require.NoError(t, err)
		assert.Len(t, byGender, 2)

		byAge, err := repo.FindByAgeRange(ctx, 21, 25)
		require.NoError(t, err)
		assert.Len(t, byAge, 2)

		byKeyword, err := repo.SearchByKeyword(ctx, "li@x")
		require.NoError(t, err)
		require.Len(t, byKeyword, 1)
		assert.Equal(t, "Li Na", byKeyword[0].Name)

		oldest, err := repo.FindOldestByMajor(ctx, "CS")
		require.NoError(t, err)
		require.Len(t, oldest, 1)
		assert.Equal(t, 22, oldest[0].Age)

		stats, err := repo.CountGroupedByMajor(ctx)
		require.NoError(t, err)
		assert.Equal(t, []student.MajorCount{{Major: "CS", Count: 2}, {Major: "Math", Count: 1}}, stats)

		none, err := repo.FindByMajor(ctx, "History")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("PagingAndSorting", func(t *testing.T) {
		testutil.CleanupTables(t, pg.DB, "students")

		emails := []string{"c@x.com", "a@x.com", "b@x.com"}
		names := []string{"Wang Fang", "Zhang Wei", "Li Na"}
		for i := range emails {
			_, err := repo.Insert(ctx, seedStudent(emails[i], names[i], "CS", "CS-1", 20+i, student.GenderMale))
			require.NoError(t, err)
		}

		page, total, err := repo.FindPage(ctx, 2, 0, "email", false)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 2)
		assert.Equal(t, "a@x.com", page[0].Email)

		descPage, _, err := repo.FindPage(ctx, 1, 0, "age", true)
		require.NoError(t, err)
		require.Len(t, descPage, 1)
		assert.Equal(t, 22, descPage[0].Age)
	})

	t.Run("Existence", func(t *testing.T) {
		testutil.CleanupTables(t, pg.DB, "students")

		created, err := repo.Insert(ctx, seedStudent("zhang@x.com", "Zhang Wei", "CS", "CS-1", 20, student.GenderMale))
		require.NoError(t, err)

		exists, err := repo.ExistsByEmail(ctx, "zhang@x.com")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByID(ctx, created.ID+100)
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = repo.FindByEmail(ctx, "ghost@x.com")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})
}
