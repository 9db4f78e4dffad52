package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
)

func TestFillPool(t *testing.T) {
	t.Run("creates exactly the deficit", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.fillPool(model.KindOne2One)

		// target 2 regular + 1 invitation
		assert.Len(t, env.conn.creates, 3)
	})

	t.Run("refill is idempotent while requests are in flight", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.fillPool(model.KindOne2One)
		env.bot.fillPool(model.KindOne2One)

		assert.Len(t, env.conn.creates, 3, "second refill with no occupancy change creates nothing")
	})

	t.Run("refill is idempotent after rooms are persisted", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.fillPool(model.KindOne2One)
		for _, c := range env.conn.creates {
			env.bot.handleRoomCreated(muc.RoomCreated{Room: c.Room, OK: true})
		}

		env.bot.fillPool(model.KindOne2One)
		assert.Len(t, env.conn.creates, 3)

		regular, _ := env.rooms.CountByStatus(env.bot.ctx, model.KindOne2One, model.StatusAvailable)
		invitation, _ := env.rooms.CountByStatus(env.bot.ctx, model.KindOne2One, model.StatusAvailableForInvitation)
		assert.Equal(t, 2, regular)
		assert.Equal(t, 1, invitation)
	})

	t.Run("a successfully configured room is persisted and entered", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.fillPool(model.KindGroup)
		require.Len(t, env.conn.creates, 1)
		created := env.conn.creates[0]

		assert.False(t, created.Config.Public)
		assert.False(t, created.Config.Persistent)
		assert.False(t, created.Config.AllowInvites)
		assert.NotEmpty(t, created.Config.Password)
		assert.Equal(t, 30, created.Config.MaxOccupants)

		env.bot.handleRoomCreated(muc.RoomCreated{Room: created.Room, OK: true})

		jid := created.Room + "@muc.test"
		room := env.rooms.get(jid)
		require.NotNil(t, room)
		assert.Equal(t, model.StatusAvailable, room.Status)
		assert.Equal(t, created.Config.Password, room.Password)

		require.Len(t, env.conn.joins, 1)
		assert.Equal(t, jid, env.conn.joins[0].Room)
		assert.Equal(t, "roombot", env.conn.joins[0].Nick)
	})

	t.Run("a rejected configuration leaves no row and is retried", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.fillPool(model.KindGroup)
		require.Len(t, env.conn.creates, 1)

		env.bot.handleRoomCreated(muc.RoomCreated{Room: env.conn.creates[0].Room, OK: false, Reason: "service unhappy"})

		count, _ := env.rooms.CountByStatus(env.bot.ctx, model.KindGroup, model.StatusAvailable)
		assert.Equal(t, 0, count)

		env.bot.fillPool(model.KindGroup)
		assert.Len(t, env.conn.creates, 2, "next cycle retries the deficit")
	})

	t.Run("creates orphaned by a reconnect do not count against the deficit", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.fillPool(model.KindOne2One)
		require.Len(t, env.conn.creates, 3)

		// The session drops before any roomCreated answer arrives; the
		// rejoin forgets the in-flight requests.
		require.NoError(t, env.bot.rejoinAll())

		env.bot.fillPool(model.KindOne2One)
		assert.Len(t, env.conn.creates, 6, "the full deficit is requested again")
	})

	t.Run("one2one rooms are capped at three occupants", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.fillPool(model.KindOne2One)
		require.NotEmpty(t, env.conn.creates)
		assert.Equal(t, 3, env.conn.creates[0].Config.MaxOccupants)
	})
}

func TestNewRoomName(t *testing.T) {
	t.Run("names carry the site prefix and stay unique", func(t *testing.T) {
		env := newTestEnv(t)

		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			name := env.bot.newRoomName()
			assert.True(t, strings.HasPrefix(name, "care-"), "name %q should carry the site prefix", name)
			assert.False(t, seen[name], "duplicate name %q", name)
			seen[name] = true
		}
	})

	t.Run("a collision with the previous name gets a suffix", func(t *testing.T) {
		env := newTestEnv(t)

		assert.Equal(t, "care-aaaa", env.bot.dedupeName("care-aaaa"))
		assert.Equal(t, "care-aaaa-1", env.bot.dedupeName("care-aaaa"))
		assert.Equal(t, "care-aaaa-1-2", env.bot.dedupeName("care-aaaa-1"))
		assert.Equal(t, "care-bbbb", env.bot.dedupeName("care-bbbb"))
	})
}
