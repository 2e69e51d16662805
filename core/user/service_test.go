package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/user"
	"github.com/trezcool/somesha/testutil"
)

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	usr, err := env.UserSvc.Create(ctx, user.NewUser{
		Name:     "Alice",
		Username: "alice",
		Email:    "alice@test.cd",
		Password: testutil.Password,
	})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(testutil.Password))

	tests := []struct {
		name, uname, email string
	}{
		{"username taken", "alice", "other@test.cd"},
		{"email taken", "other", "alice@test.cd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.UserSvc.CheckUniqueness(ctx, tt.uname, tt.email)
			assert.True(t, core.IsValidationError(err), "got %v", err)
		})
	}
	assert.NoError(t, env.UserSvc.CheckUniqueness(ctx, "alice", "alice@test.cd", usr.ID))

	found, err := env.UserSvc.GetByUsernameOrEmail(ctx, " ALICE@test.cd ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, found.ID)
}

func TestService_passwordReset(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	alice := env.Student(t, "alice")
	inactive := testutil.CreateUser(t, env.UserRepo, "Gone", "gone", "gone@test.cd", user.RoleStudent, false)

	assert.True(t, core.IsNotFound(env.UserSvc.RequestPasswordReset(ctx, "nobody@test.cd")))
	assert.True(t, core.IsNotFound(env.UserSvc.RequestPasswordReset(ctx, inactive.Email)))
	assert.Empty(t, env.Mail.SentMessages())

	require.NoError(t, env.UserSvc.RequestPasswordReset(ctx, alice.Email))
	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	data, ok := sent[0].TemplateData.(map[string]interface{})
	require.True(t, ok)
	uid, token := data["UID"].(string), data["Token"].(string)

	const newPwd = "Qp4$vNz8!rTy"
	err := env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: "bogus-token", Password: newPwd})
	assert.True(t, core.IsValidationError(err), "got %v", err)

	err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: "!!", Token: token, Password: newPwd})
	assert.Equal(t, user.ErrInvalidReset, err)

	require.NoError(t, env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd}))
	usr, err := env.UserSvc.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword(newPwd))

	// the token is bound to the password it was issued for
	err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: testutil.Password})
	assert.True(t, core.IsValidationError(err), "got %v", err)
}
