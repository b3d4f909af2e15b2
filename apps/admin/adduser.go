package main

import (
	"context"
	"time"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	if name == "" {
		name = uname
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	found := err == nil
	if err != nil && err != user.ErrNotFound {
		return err
	}
	var excluded []user.User
	if found {
		excluded = append(excluded, usr)
	}
	if err = cli.usrRepo.CheckUsernameUniqueness(ctx, uname, email, excluded...); err != nil {
		return err
	}

	now := time.Now().UTC()
	usr.Name = name
	usr.Username = uname
	usr.Email = email
	usr.IsActive = true
	usr.UpdatedAt = now
	if isAdmin {
		usr.Roles = user.AdminRoles
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if found {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		usr.CreatedAt = now
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
