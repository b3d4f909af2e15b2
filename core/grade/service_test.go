package grade_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/grade"
	"github.com/truonghoc/backend/core/period"
	"github.com/truonghoc/backend/core/subject"
	"github.com/truonghoc/backend/core/user"
	"github.com/truonghoc/backend/storage/database/inmem"
	"github.com/truonghoc/backend/tests"
)

type fixture struct {
	svc      grade.Service
	usrRepo  user.Repository
	perRepo  period.Repository
	admin    user.AuthContext
	teacher  user.AuthContext
	student  user.User
	other    user.User
	math     subject.Subject
	physics  subject.Subject
	semester period.ReportingPeriod
	closed   period.ReportingPeriod
}

func val(v float64) *float64 { return &v }

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	subRepo := inmemdb.NewSubjectRepository(db)
	perRepo := inmemdb.NewPeriodRepository(db)

	f := fixture{
		svc:     grade.NewService(inmemdb.NewGradeRepository(db), perRepo, subRepo, usrRepo),
		usrRepo: usrRepo,
		perRepo: perRepo,
		admin:   testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.vn", "", []string{user.RoleAdmin}, true).AuthContext(),
		teacher: testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.vn", "", []string{user.RoleTeacher}, true).AuthContext(),
		student: testutil.CreateUser(t, usrRepo, "Hoa Nguyen", "hoa", "hoa@test.vn", "", []string{user.RoleStudent}, true),
		other:   testutil.CreateUser(t, usrRepo, "Minh Tran", "minh", "minh@test.vn", "", []string{user.RoleStudent}, true),
		math:    testutil.CreateSubject(t, subRepo, "math", "Mathematics"),
		physics: testutil.CreateSubject(t, subRepo, "physics", "Physics"),
	}
	f.semester = testutil.CreatePeriod(t, perRepo, "Semester 1", core.NewDate(2024, time.January, 1), core.NewDate(2024, time.May, 31), false)
	f.closed = testutil.CreatePeriod(t, perRepo, "Semester 0", core.NewDate(2023, time.September, 1), core.NewDate(2023, time.December, 31), true)
	return f
}

func (f fixture) enter(t *testing.T, sub subject.Subject, typ string, v *float64) grade.Component {
	c, err := f.svc.EnterComponent(context.Background(), f.teacher, grade.NewComponent{
		ReportingPeriodID: f.semester.ID,
		StudentID:         f.student.ID,
		SubjectID:         sub.ID,
		Type:              typ,
		Value:             v,
	})
	require.NoError(t, err)
	return c
}

func TestService_EnterComponent(t *testing.T) {
	f := setup(t)
	f.enter(t, f.math, grade.TypeMidterm, val(7))

	nc := func(periodID, studentID string, typ string) grade.NewComponent {
		return grade.NewComponent{ReportingPeriodID: periodID, StudentID: studentID, SubjectID: f.math.ID, Type: typ, Value: val(8)}
	}
	tests := []struct {
		name      string
		actor     user.AuthContext
		nc        grade.NewComponent
		wantErr   error
		wantField string
	}{
		{name: "unauthenticated", nc: nc(f.semester.ID, f.student.ID, grade.TypeRegular), wantErr: core.ErrUnauthorized},
		{name: "staff only", actor: f.student.AuthContext(), nc: nc(f.semester.ID, f.student.ID, grade.TypeRegular), wantErr: core.ErrForbidden},
		{name: "closed period", actor: f.teacher, nc: nc(f.closed.ID, f.student.ID, grade.TypeRegular), wantErr: grade.ErrPeriodClosed},
		{name: "unknown period", actor: f.teacher, nc: nc("unknown", f.student.ID, grade.TypeRegular), wantField: "reporting_period_id"},
		{name: "not a student", actor: f.teacher, nc: nc(f.semester.ID, f.teacher.UserID, grade.TypeRegular), wantField: "student_id"},
		{name: "second midterm", actor: f.teacher, nc: nc(f.semester.ID, f.student.ID, grade.TypeMidterm), wantErr: grade.ErrComponentExists},
		{name: "many regulars", actor: f.teacher, nc: nc(f.semester.ID, f.student.ID, grade.TypeRegular)},
		{name: "many regulars (again)", actor: f.admin, nc: nc(f.semester.ID, f.student.ID, grade.TypeRegular)},
		{name: "midterm of another student", actor: f.teacher, nc: nc(f.semester.ID, f.other.ID, grade.TypeMidterm)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := f.svc.EnterComponent(context.Background(), tt.actor, tt.nc)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantField != "":
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, c.ID)
				assert.Equal(t, tt.actor.UserID, c.EnteredBy)
				assert.Equal(t, 8.0, *c.Value)
			}
		})
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.enter(t, f.math, grade.TypeRegular, nil)

	updated, err := f.svc.UpdateComponent(ctx, f.teacher, c.ID, grade.UpdateComponent{Value: val(9.5)})
	require.NoError(t, err)
	assert.Equal(t, 9.5, *updated.Value)

	_, err = f.svc.UpdateComponent(ctx, f.student.AuthContext(), c.ID, grade.UpdateComponent{Value: val(10)})
	assert.Equal(t, core.ErrForbidden, err)

	require.NoError(t, f.svc.DeleteComponent(ctx, f.teacher, c.ID))
	_, err = f.svc.GetComponent(ctx, f.teacher, c.ID)
	assert.Equal(t, grade.ErrNotFound, err)
	assert.Equal(t, grade.ErrNotFound, f.svc.DeleteComponent(ctx, f.teacher, c.ID))
}

func TestService_CorrectComponent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.enter(t, f.math, grade.TypeFinal, val(4))

	// once the semester is closed, only corrections go through
	f.semester.IsClosed = true
	_, err := f.perRepo.UpdatePeriod(ctx, f.semester)
	require.NoError(t, err)

	_, err = f.svc.UpdateComponent(ctx, f.teacher, c.ID, grade.UpdateComponent{Value: val(6)})
	assert.Equal(t, grade.ErrPeriodClosed, err)
	assert.Equal(t, grade.ErrPeriodClosed, f.svc.DeleteComponent(ctx, f.teacher, c.ID))

	corrected, corr, err := f.svc.CorrectComponent(ctx, f.admin, c.ID, grade.NewCorrection{Value: val(6), Reason: "typo"})
	require.NoError(t, err)
	assert.Equal(t, 6.0, *corrected.Value)
	assert.Equal(t, 4.0, *corr.OldValue)
	assert.Equal(t, 6.0, *corr.NewValue)
	assert.Equal(t, f.admin.UserID, corr.CorrectedBy)

	_, _, err = f.svc.CorrectComponent(ctx, f.teacher, c.ID, grade.NewCorrection{Value: val(7), Reason: "typo"})
	assert.Equal(t, core.ErrForbidden, err)

	_, _, err = f.svc.CorrectComponent(ctx, f.admin, "unknown", grade.NewCorrection{Value: val(7), Reason: "typo"})
	assert.Equal(t, grade.ErrNotFound, err)

	corrs, err := f.svc.ListCorrections(ctx, f.teacher, c.ID)
	require.NoError(t, err)
	require.Len(t, corrs, 1)
	assert.Equal(t, corr.ID, corrs[0].ID)

	_, err = f.svc.ListCorrections(ctx, f.student.AuthContext(), c.ID)
	assert.Equal(t, core.ErrForbidden, err)
}

func TestService_Visibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mine := f.enter(t, f.math, grade.TypeRegular, val(8))
	theirs, err := f.svc.EnterComponent(ctx, f.teacher, grade.NewComponent{
		ReportingPeriodID: f.semester.ID,
		StudentID:         f.other.ID,
		SubjectID:         f.math.ID,
		Type:              grade.TypeRegular,
		Value:             val(5),
	})
	require.NoError(t, err)

	_, err = f.svc.GetComponent(ctx, f.student.AuthContext(), theirs.ID)
	assert.Equal(t, grade.ErrNotFound, err)
	got, err := f.svc.GetComponent(ctx, f.student.AuthContext(), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine, got)

	comps, err := f.svc.ListComponents(ctx, f.student.AuthContext(), &grade.QueryFilter{StudentID: f.other.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, []grade.Component{mine}, comps)

	comps, err = f.svc.ListComponents(ctx, f.teacher, &grade.QueryFilter{SubjectID: f.math.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, comps, 2)

	_, err = f.svc.StudentReport(ctx, f.student.AuthContext(), f.semester.ID, f.other.ID)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = f.svc.HomeroomSummary(ctx, user.AuthContext{}, f.semester.ID, f.student.ID)
	assert.Equal(t, core.ErrUnauthorized, err)
}

func TestService_StudentReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.enter(t, f.physics, grade.TypeRegular, val(7))
	f.enter(t, f.physics, grade.TypeRegular, val(7.5))
	f.enter(t, f.math, grade.TypeRegular, val(8))
	f.enter(t, f.math, grade.TypeRegular, val(7))
	f.enter(t, f.math, grade.TypeMidterm, val(9))
	f.enter(t, f.math, grade.TypeFinal, val(6))

	rep, err := f.svc.StudentReport(ctx, f.student.AuthContext(), f.semester.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Semester 1", rep.ReportingPeriodName)
	assert.Equal(t, "Hoa Nguyen", rep.StudentName)
	require.Len(t, rep.Subjects, 2)

	assert.Equal(t, "Mathematics", rep.Subjects[0].SubjectName)
	assert.Len(t, rep.Subjects[0].Components, 4)
	require.NotNil(t, rep.Subjects[0].Average)
	assert.Equal(t, 7.3, *rep.Subjects[0].Average)

	assert.Equal(t, "Physics", rep.Subjects[1].SubjectName)
	require.NotNil(t, rep.Subjects[1].Average)
	assert.Equal(t, 7.3, *rep.Subjects[1].Average)

	t.Run("placeholders only", func(t *testing.T) {
		rep, err := f.svc.StudentReport(ctx, f.teacher, f.semester.ID, f.other.ID)
		require.NoError(t, err)
		assert.Empty(t, rep.Subjects)

		_, err = f.svc.EnterComponent(ctx, f.teacher, grade.NewComponent{
			ReportingPeriodID: f.semester.ID,
			StudentID:         f.other.ID,
			SubjectID:         f.math.ID,
			Type:              grade.TypeFinal,
		})
		require.NoError(t, err)
		rep, err = f.svc.StudentReport(ctx, f.teacher, f.semester.ID, f.other.ID)
		require.NoError(t, err)
		require.Len(t, rep.Subjects, 1)
		assert.Nil(t, rep.Subjects[0].Average)
	})

	t.Run("unknown period", func(t *testing.T) {
		_, err := f.svc.StudentReport(ctx, f.teacher, "unknown", f.student.ID)
		assert.Equal(t, period.ErrNotFound, err)
	})
}

func TestService_HomeroomSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.enter(t, f.math, grade.TypeRegular, val(1))
	f.enter(t, f.math, grade.TypeMidterm, val(8))
	f.enter(t, f.math, grade.TypeFinal, val(6))
	f.enter(t, f.physics, grade.TypeMidterm, val(9))

	sum, err := f.svc.HomeroomSummary(ctx, f.teacher, f.semester.ID, f.student.ID)
	require.NoError(t, err)
	require.Len(t, sum.Subjects, 2)

	math := sum.Subjects[0]
	assert.Equal(t, f.math.ID, math.SubjectID)
	assert.Equal(t, 8.0, *math.Midterm)
	assert.Equal(t, 6.0, *math.Final)
	require.NotNil(t, math.Average)
	assert.Equal(t, 7.0, *math.Average)

	physics := sum.Subjects[1]
	assert.Equal(t, 9.0, *physics.Midterm)
	assert.Nil(t, physics.Final)
	assert.Nil(t, physics.Average)
}
