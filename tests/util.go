// Package testutil holds the fixtures shared by the tests of the other packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/period"
	"github.com/truonghoc/backend/core/subject"
	"github.com/truonghoc/backend/core/user"
)

// NewConfig returns the default config in test mode.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	return conf
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateSubject(t *testing.T, repo subject.Repository, code, name string) subject.Subject {
	sub, err := repo.CreateSubject(context.Background(), subject.Subject{
		Code:      code,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return sub
}

func CreatePeriod(t *testing.T, repo period.Repository, name string, start, end core.Date, isClosed bool) period.ReportingPeriod {
	p, err := repo.CreatePeriod(context.Background(), period.ReportingPeriod{
		Name:      name,
		StartDate: start,
		EndDate:   end,
		IsClosed:  isClosed,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createPeriod() failed: %v", err)
	}
	return p
}
