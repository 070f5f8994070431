package services

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/models"
)

func login(t *testing.T, env *testEnv, email string) *AuthResult {
	t.Helper()
	res, err := env.auth.Login(env.ctx, LoginInput{Email: email, Password: "secret123", IPAddress: "127.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	return res
}

func TestRegisterCreatesSatelliteProfile(t *testing.T) {
	env := newTestEnv(t)

	supplier, err := env.auth.Register(env.ctx, RegisterInput{
		Email:    "  Shop@Example.com ",
		Password: "secret123",
		FullName: "Paul",
		Role:     models.RoleSupplier,
		RoleData: RoleData{BusinessName: "Chez Paul", BusinessType: "bakery"},
	})
	require.NoError(t, err)
	assert.Equal(t, "shop@example.com", supplier.Email)
	require.NotNil(t, supplier.SupplierProfile)
	assert.True(t, supplier.SupplierProfile.IsOpen)

	var profiles, clients int64
	require.NoError(t, env.db.Model(&models.SupplierProfile{}).Where("user_id = ?", supplier.ID).Count(&profiles).Error)
	require.NoError(t, env.db.Model(&models.ClientProfile{}).Where("user_id = ?", supplier.ID).Count(&clients).Error)
	assert.EqualValues(t, 1, profiles)
	assert.EqualValues(t, 0, clients)

	client, err := env.auth.Register(env.ctx, RegisterInput{Email: "c@example.com", Password: "secret123", FullName: "Cli"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, client.Role)
	assert.NotNil(t, client.ClientProfile)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, models.RoleClient, "dup@example.com")

	_, err := env.auth.Register(env.ctx, RegisterInput{Email: "DUP@example.com", Password: "secret123", FullName: "Other"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.AlreadyExists))
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		in   RegisterInput
		kind error
	}{
		{"missing fields", RegisterInput{Email: "a@example.com"}, errors.BadRequest},
		{"bad email", RegisterInput{Email: "nope", Password: "secret123", FullName: "A"}, errors.NotValid},
		{"short password", RegisterInput{Email: "a@example.com", Password: "123", FullName: "A"}, errors.BadRequest},
		{"unknown role", RegisterInput{Email: "a@example.com", Password: "secret123", FullName: "A", Role: "pirate"}, errors.NotValid},
		{"supplier without business", RegisterInput{Email: "a@example.com", Password: "secret123", FullName: "A", Role: models.RoleSupplier}, errors.BadRequest},
		{"public admin", RegisterInput{Email: "a@example.com", Password: "secret123", FullName: "A", Role: models.RoleAdmin}, errors.Forbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.auth.Register(env.ctx, tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestLoginAndVerifySession(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, models.RoleClient, "alice@example.com")

	res := login(t, env, "alice@example.com")
	assert.Equal(t, epoch.Add(24*time.Hour), res.ExpiresAt)
	require.NotNil(t, res.User.LastLoginAt)

	sc, err := env.auth.VerifySession(env.ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sc.UserID())
	assert.Equal(t, models.RoleClient, sc.Role())
	assert.Equal(t, res.SessionID, sc.SessionID)

	var audits int64
	require.NoError(t, env.db.Model(&models.AuditLog{}).Where("action = ?", auditLogin).Count(&audits).Error)
	assert.EqualValues(t, 1, audits)

	env.clock.Advance(25 * time.Hour)
	_, err = env.auth.VerifySession(env.ctx, res.Token)
	assert.True(t, errors.Is(err, errors.Unauthorized))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, models.RoleClient, "bob@example.com")

	for _, in := range []LoginInput{
		{Email: "bob@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "secret123"},
	} {
		_, err := env.auth.Login(env.ctx, in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.Unauthorized))
		assert.Equal(t, "invalid credentials", err.Error())
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	agent := strings.Repeat("a", 254) + "é"
	got := truncate(agent, 255)
	assert.Equal(t, strings.Repeat("a", 254), got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "short", truncate("short", 255))
	assert.Equal(t, "ab", truncate("abcd", 2))
	assert.Equal(t, "", truncate("é", 1))
}

func TestLoginRejectsSuspendedAccount(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, models.RoleClient, "sus@example.com")
	require.NoError(t, env.db.Model(user).Update("status", models.UserStatusSuspended).Error)

	_, err := env.auth.Login(env.ctx, LoginInput{Email: "sus@example.com", Password: "secret123"})
	assert.True(t, errors.Is(err, errors.Unauthorized))
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, models.RoleClient, "carol@example.com")
	res := login(t, env, "carol@example.com")

	sc, err := env.auth.VerifySession(env.ctx, res.Token)
	require.NoError(t, err)
	require.NoError(t, env.auth.Logout(env.ctx, sc, "127.0.0.1"))

	_, err = env.auth.VerifySession(env.ctx, res.Token)
	assert.True(t, errors.Is(err, errors.Unauthorized))
}

func TestExtendSessionReissuesToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, models.RoleClient, "dan@example.com")
	res := login(t, env, "dan@example.com")

	env.clock.Advance(20 * time.Hour)
	sc, err := env.auth.VerifySession(env.ctx, res.Token)
	require.NoError(t, err)

	extended, err := env.auth.ExtendSession(env.ctx, sc)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(44*time.Hour), extended.ExpiresAt)
	assert.NotEqual(t, res.Token, extended.Token)

	_, err = env.auth.VerifySession(env.ctx, res.Token)
	assert.True(t, errors.Is(err, errors.Unauthorized), "old token must stop verifying")

	env.clock.Advance(10 * time.Hour)
	_, err = env.auth.VerifySession(env.ctx, extended.Token)
	assert.NoError(t, err)
}

func TestChangePasswordEndsOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, models.RoleClient, "eve@example.com")
	first := login(t, env, "eve@example.com")
	second := login(t, env, "eve@example.com")

	sc, err := env.auth.VerifySession(env.ctx, first.Token)
	require.NoError(t, err)

	err = env.auth.ChangePassword(env.ctx, sc, "bad-old", "newsecret", "")
	assert.True(t, errors.Is(err, errors.Unauthorized))

	require.NoError(t, env.auth.ChangePassword(env.ctx, sc, "secret123", "newsecret", ""))

	_, err = env.auth.VerifySession(env.ctx, first.Token)
	assert.NoError(t, err)
	_, err = env.auth.VerifySession(env.ctx, second.Token)
	assert.True(t, errors.Is(err, errors.Unauthorized))

	_, err = env.auth.Login(env.ctx, LoginInput{Email: "eve@example.com", Password: "newsecret"})
	assert.NoError(t, err)
}

func TestListAndRevokeSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, models.RoleClient, "fay@example.com")
	other := env.register(t, models.RoleClient, "gus@example.com")
	login(t, env, "fay@example.com")
	res := login(t, env, "fay@example.com")

	sessions, err := env.auth.ListSessions(env.ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	err = env.auth.RevokeSession(env.ctx, other.ID, res.SessionID)
	assert.True(t, errors.Is(err, errors.NotFound))

	require.NoError(t, env.auth.RevokeSession(env.ctx, user.ID, res.SessionID))
	sessions, err = env.auth.ListSessions(env.ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestCleanupExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, models.RoleClient, "hal@example.com")
	login(t, env, "hal@example.com")

	env.clock.Advance(48 * time.Hour)
	live := login(t, env, "hal@example.com")

	res, err := env.auth.CleanupExpiredSessions(env.ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Expired)
	assert.EqualValues(t, 0, res.Purged)

	_, err = env.auth.VerifySession(env.ctx, live.Token)
	assert.NoError(t, err)

	env.clock.Advance(10 * 24 * time.Hour)
	res, err = env.auth.CleanupExpiredSessions(env.ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Expired)
	assert.EqualValues(t, 2, res.Purged)
}
