package services

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/models"
)

func TestSessionSweeperDeactivatesExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, models.RoleClient, "sweep@example.com")
	login(t, env, "sweep@example.com")

	sweeper := StartSessionSweeper(env.auth, env.clock, time.Hour)
	defer func() { assert.NoError(t, sweeper.Stop()) }()

	// Past the token TTL, then one sweep interval.
	require.NoError(t, env.clock.WaitAdvance(25*time.Hour, time.Second, 1))

	assert.Eventually(t, func() bool {
		var active int64
		if err := env.db.Model(&models.Session{}).
			Where("user_id = ? AND is_active = ?", user.ID, true).
			Count(&active).Error; err != nil {
			return false
		}
		return active == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err := env.auth.Login(env.ctx, LoginInput{Email: "sweep@example.com", Password: "secret123"})
	assert.False(t, errors.Is(err, errors.Unauthorized))
}
