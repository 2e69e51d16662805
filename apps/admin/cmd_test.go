package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/user"
	"github.com/trezcool/somesha/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{
		conf:   env.Conf,
		usrSvc: env.UserSvc,
		out:    new(bytes.Buffer),
	}, env
}

func withPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var ran []string
	orig := migrateFunc
	migrateFunc = func(_ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "up-to", "down", "down-to", "redo", "reset", "status", "version":
			ran = append(ran, fmt.Sprint(append([]string{command}, args...)))
			return nil
		default:
			return fmt.Errorf("%q: no such command", command)
		}
	}
	t.Cleanup(func() { migrateFunc = orig })

	err := cli.run([]string{"admin", "migrate"})
	assert.Equal(t, errHelp, err)

	err = cli.run([]string{"admin", "migrate", "lol"})
	assert.EqualError(t, err, `"lol": no such command`)

	require.NoError(t, cli.run([]string{"admin", "migrate", "up"}))
	require.NoError(t, cli.run([]string{"admin", "migrate", "down-to", "1"}))
	assert.Equal(t, []string{"[up]", "[down-to 1]"}, ran)
}

func Test_commandLine_createdb(t *testing.T) {
	cli, env := setup(t)

	var got *core.Config
	orig := createDBFunc
	createDBFunc = func(conf *core.Config) error {
		got = conf
		return nil
	}
	t.Cleanup(func() { createDBFunc = orig })

	require.NoError(t, cli.run([]string{"admin", "createdb"}))
	assert.Same(t, env.Conf, got)
}

func Test_commandLine_adduser(t *testing.T) {
	ctx := context.Background()
	cli, env := setup(t)
	existing := env.Student(t, "awe")

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "boss"}, pwd: testutil.Password, wantErr: errHelp},
		{name: "bad role", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd", "-role", "king"}, pwd: testutil.Password, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd"}, wantErr: errHelp},
		{name: "create admin", args: []string{"adduser", "-username", "Boss", "-email", "boss@test.cd", "-name", "The Boss"}, pwd: testutil.Password},
		{name: "promote existing", args: []string{"adduser", "-username", existing.Username, "-email", existing.Email, "-role", "instructor"}, pwd: "n3w-Pa55word!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			assert.Equal(t, tt.wantErr, err)
		})
	}

	boss, err := env.UserSvc.GetByUsernameOrEmail(ctx, "boss")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, boss.Role)
	assert.Equal(t, "The Boss", boss.Name)
	assert.True(t, boss.IsActive)
	assert.NoError(t, boss.CheckPassword(testutil.Password))

	promoted, err := env.UserSvc.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleInstructor, promoted.Role)
	assert.Equal(t, existing.Name, promoted.Name)
	assert.NoError(t, promoted.CheckPassword("n3w-Pa55word!"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	ctx := context.Background()
	cli, env := setup(t)
	usr := env.Student(t, "awe")

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			refreshed, err := env.UserSvc.GetByID(ctx, usr.ID)
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(tt.pwd))
		})
	}
}
