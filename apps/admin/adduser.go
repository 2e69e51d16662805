package main

import (
	"context"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/user"
)

// addUser updates or creates an active user with the given role.
func (cli *commandLine) addUser(name, uname, email, pwd string, role user.Role) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if core.IsNotFound(err) {
		usr, err = cli.usrSvc.GetByUsernameOrEmail(ctx, email)
	}
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		if err := cli.usrSvc.CheckUniqueness(ctx, uname, email); err != nil {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:     name,
			Username: uname,
			Email:    email,
			Password: pwd,
			Role:     role,
		})
		return err
	}

	if err := cli.usrSvc.CheckUniqueness(ctx, uname, email, usr.ID); err != nil {
		return err
	}
	if name == "" {
		name = usr.Name
	}
	active := true
	_, err = cli.usrSvc.Update(ctx, usr, user.UpdateUser{
		Name:     name,
		Username: uname,
		Email:    email,
		IsActive: &active,
		Role:     role,
		Password: pwd,
	})
	return err
}
