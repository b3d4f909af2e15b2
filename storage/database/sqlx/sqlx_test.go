package sqlxrepos_test

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/grade"
	"github.com/truonghoc/backend/core/improvement"
	"github.com/truonghoc/backend/core/subject"
	"github.com/truonghoc/backend/core/user"
	"github.com/truonghoc/backend/storage/database"
	sqlxrepos "github.com/truonghoc/backend/storage/database/sqlx"
	testutil "github.com/truonghoc/backend/tests"
)

// openTestDB connects to the configured postgres (with ENV=test, the TEST_DATABASE_* variables). Set DB_TESTS=1 to run these tests.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("DB_TESTS") == "" {
		t.Skip("DB_TESTS not set; skipping postgres tests")
	}
	conf := testutil.NewConfig()
	require.NoError(t, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db.DB, "up"))
	return db
}

// suffix keeps unique columns distinct between runs against the same database.
func suffix() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

type fixtures struct {
	users    user.Repository
	subjects subject.Repository
	admin    user.User
	student  user.User
	math     subject.Subject
}

func newFixtures(t *testing.T, db *sqlx.DB) fixtures {
	s := suffix()
	users := sqlxrepos.NewUserRepository(db)
	subjects := sqlxrepos.NewSubjectRepository(db)
	return fixtures{
		users:    users,
		subjects: subjects,
		admin:    testutil.CreateUser(t, users, "Admin", "admin"+s, "admin"+s+"@test.com", "", []string{user.RoleAdmin}, true),
		student:  testutil.CreateUser(t, users, "Student", "student"+s, "student"+s+"@test.com", "", []string{user.RoleStudent}, true),
		math:     testutil.CreateSubject(t, subjects, "MATH"+s, "Math"),
	}
}

func TestUserRepository(t *testing.T) {
	db := openTestDB(t)
	fx := newFixtures(t, db)
	ctx := context.Background()

	got, err := fx.users.GetUser(ctx, user.GetFilter{ID: fx.student.ID})
	require.NoError(t, err)
	assert.Equal(t, fx.student.Username, got.Username)
	assert.Equal(t, []string{user.RoleStudent}, []string(got.Roles))

	_, err = fx.users.GetUser(ctx, user.GetFilter{ID: "00000000-0000-0000-0000-000000000000"})
	assert.True(t, core.IsNotFound(err))

	dup := fx.student
	dup.Email = "other" + suffix() + "@test.com"
	_, err = fx.users.CreateUser(ctx, dup)
	assert.Equal(t, user.ErrUsernameExists, err)
}

func TestSubjectRepository(t *testing.T) {
	db := openTestDB(t)
	fx := newFixtures(t, db)
	ctx := context.Background()

	got, err := fx.subjects.GetSubjectByCode(ctx, fx.math.Code)
	require.NoError(t, err)
	assert.Equal(t, fx.math.ID, got.ID)

	_, err = fx.subjects.CreateSubject(ctx, subject.Subject{Code: fx.math.Code, Name: "Again", CreatedAt: time.Now().UTC()})
	assert.Equal(t, subject.ErrCodeExists, err)
}

func TestGradeRepository(t *testing.T) {
	db := openTestDB(t)
	fx := newFixtures(t, db)
	periods := sqlxrepos.NewPeriodRepository(db)
	repo := sqlxrepos.NewGradeRepository(db)
	ctx := context.Background()

	rp := testutil.CreatePeriod(t, periods, "Term "+suffix(), core.NewDate(2024, time.January, 1), core.NewDate(2024, time.June, 30), false)
	newComponent := func(typ string, v float64) grade.Component {
		now := time.Now().UTC()
		return grade.Component{
			ReportingPeriodID: rp.ID,
			StudentID:         fx.student.ID,
			SubjectID:         fx.math.ID,
			Type:              typ,
			Value:             &v,
			EnteredBy:         fx.admin.ID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}

	tests := []struct {
		name    string
		comp    grade.Component
		wantErr error
	}{
		{"First regular", newComponent(grade.TypeRegular, 7.5), nil},
		{"Second regular", newComponent(grade.TypeRegular, 8), nil},
		{"Midterm", newComponent(grade.TypeMidterm, 6.5), nil},
		{"Second midterm", newComponent(grade.TypeMidterm, 9), grade.ErrComponentExists},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.CreateComponent(ctx, tc.comp)
			assert.Equal(t, tc.wantErr, err)
		})
	}

	comps, err := repo.QueryComponents(ctx, &grade.QueryFilter{ReportingPeriodID: rp.ID, StudentID: fx.student.ID}, nil)
	require.NoError(t, err)
	require.Len(t, comps, 3)

	t.Run("Correction is kept with the component", func(t *testing.T) {
		comp := comps[0]
		old, v := comp.Value, 9.5
		comp.Value = &v
		corr := grade.Correction{OldValue: old, NewValue: &v, Reason: "typo", CorrectedBy: fx.admin.ID, CorrectedAt: time.Now().UTC()}
		_, _, err := repo.CorrectComponent(ctx, comp, corr)
		require.NoError(t, err)

		got, err := repo.GetComponent(ctx, comp.ID)
		require.NoError(t, err)
		assert.Equal(t, 9.5, *got.Value)

		corrs, err := repo.QueryCorrections(ctx, comp.ID)
		require.NoError(t, err)
		require.Len(t, corrs, 1)
		assert.Equal(t, "typo", corrs[0].Reason)
		assert.Equal(t, *old, *corrs[0].OldValue)
	})
}

func TestImprovementRepository(t *testing.T) {
	db := openTestDB(t)
	fx := newFixtures(t, db)
	periods := sqlxrepos.NewPeriodRepository(db)
	repo := sqlxrepos.NewImprovementRepository(db)
	ctx := context.Background()

	rp := testutil.CreatePeriod(t, periods, "January "+suffix(), core.NewDate(2024, time.January, 1), core.NewDate(2024, time.January, 20), false)
	newPeriod := func(startDay, endDay int) improvement.Period {
		return improvement.Period{
			ReportingPeriodID: rp.ID,
			StartDate:         core.NewDate(2024, time.January, startDay),
			EndDate:           core.NewDate(2024, time.January, endDay),
			IsActive:          true,
			CreatedBy:         fx.admin.ID,
			CreatedAt:         time.Now().UTC(),
		}
	}

	ip, err := repo.CreatePeriod(ctx, newPeriod(1, 10))
	require.NoError(t, err)

	t.Run("Overlapping window", func(t *testing.T) {
		_, err := repo.CreatePeriod(ctx, newPeriod(10, 15))
		assert.Equal(t, improvement.ErrPeriodOverlaps, err)

		found, err := repo.HasOverlappingPeriod(ctx, rp.ID, core.NewDate(2024, time.January, 10), core.NewDate(2024, time.January, 15))
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("Adjacent window", func(t *testing.T) {
		p, err := repo.CreatePeriod(ctx, newPeriod(11, 20))
		require.NoError(t, err)
		p.IsActive = false
		_, err = repo.UpdatePeriod(ctx, p)
		require.NoError(t, err)
	})

	t.Run("Open on", func(t *testing.T) {
		open, err := repo.QueryPeriods(ctx, &improvement.PeriodFilter{ReportingPeriodID: rp.ID, OpenOn: core.NewDate(2024, time.January, 5)}, nil)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, ip.ID, open[0].ID)
	})

	newRequest := func() improvement.Request {
		return improvement.Request{
			ImprovementPeriodID: ip.ID,
			StudentID:           fx.student.ID,
			SubjectID:           fx.math.ID,
			Reason:              "please review",
			Status:              improvement.StatusPending,
			CreatedAt:           time.Now().UTC(),
		}
	}
	req, err := repo.CreateRequest(ctx, newRequest())
	require.NoError(t, err)

	t.Run("Duplicate request", func(t *testing.T) {
		_, err := repo.CreateRequest(ctx, newRequest())
		assert.Equal(t, improvement.ErrDuplicateRequest, err)

		found, err := repo.RequestExists(ctx, ip.ID, fx.student.ID, fx.math.ID)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("Concurrent resolutions", func(t *testing.T) {
		resolutions := []string{improvement.StatusApproved, improvement.StatusRejected}
		errs := make([]error, len(resolutions))
		var wg sync.WaitGroup
		for i, status := range resolutions {
			wg.Add(1)
			go func(i int, status string) {
				defer wg.Done()
				now := time.Now().UTC()
				r := req
				r.Status = status
				r.AdminComment = "reviewed"
				r.ReviewedBy = fx.admin.ID
				r.ReviewedAt = &now
				_, errs[i] = repo.ResolveRequest(ctx, r)
			}(i, status)
		}
		wg.Wait()

		var resolved, refused int
		for _, err := range errs {
			switch err {
			case nil:
				resolved++
			case improvement.ErrAlreadyResolved:
				refused++
			default:
				t.Fatalf("ResolveRequest() unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, resolved)
		assert.Equal(t, 1, refused)

		got, err := repo.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.NotEqual(t, improvement.StatusPending, got.Status)
		assert.Equal(t, "reviewed", got.AdminComment)
		assert.NotNil(t, got.ReviewedAt)
	})

	t.Run("Resolve unknown request", func(t *testing.T) {
		now := time.Now().UTC()
		_, err := repo.ResolveRequest(ctx, improvement.Request{
			ID:         "00000000-0000-0000-0000-000000000000",
			Status:     improvement.StatusApproved,
			ReviewedAt: &now,
		})
		assert.Equal(t, improvement.ErrRequestNotFound, err)
	})
}
