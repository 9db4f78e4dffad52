package bot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
)

// answerSurvey feeds a well-formed survey reply into the tracker.
func answerSurvey(env *testEnv, id, answers string) {
	payload, _ := json.Marshal(muc.SurveyResult{Entry: id, Answers: answers})
	env.bot.onIQ(muc.IQ{ID: id, Type: muc.IQResult, Payload: payload})
}

func TestSurveyTracker(t *testing.T) {
	t.Run("an answer is recorded against the pending conversation", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.surveys.request("r1@muc.test", "bob", "tok-1", 42, model.SurveyClientAfter, nil)
		require.Equal(t, 1, env.bot.surveys.pendingCount())

		answerSurvey(env, "iq-1", "very helpful")

		assert.Equal(t, 0, env.bot.surveys.pendingCount())
		require.Len(t, env.chats.surveys, 1)
		assert.Equal(t, int64(42), env.chats.surveys[0].ChatID)
		assert.Equal(t, model.SurveyClientAfter, env.chats.surveys[0].Position)
		assert.Equal(t, "very helpful", env.chats.surveys[0].Answers)
		assert.Equal(t, "tok-1", env.chats.surveys[0].TokenValue)
	})

	t.Run("a reply with an unknown id is ignored", func(t *testing.T) {
		env := newTestEnv(t)

		answerSurvey(env, "iq-99", "who asked")

		assert.Empty(t, env.chats.surveys)
	})

	t.Run("an error reply drops the pending entry without recording", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.surveys.request("r1@muc.test", "bob", "tok-1", 42, model.SurveyClientAfter, nil)
		env.bot.onIQ(muc.IQ{ID: "iq-1", Type: muc.IQError})

		assert.Equal(t, 0, env.bot.surveys.pendingCount())
		assert.Empty(t, env.chats.surveys)
	})

	t.Run("a malformed reply payload is ignored but consumes the entry", func(t *testing.T) {
		env := newTestEnv(t)

		env.bot.surveys.request("r1@muc.test", "bob", "tok-1", 42, model.SurveyClientAfter, nil)
		env.bot.onIQ(muc.IQ{ID: "iq-1", Type: muc.IQResult, Payload: json.RawMessage(`{`)})

		assert.Equal(t, 0, env.bot.surveys.pendingCount())
		assert.Empty(t, env.chats.surveys)
	})

	t.Run("onDone fires for answers without a conversation", func(t *testing.T) {
		env := newTestEnv(t)

		var got string
		env.bot.surveys.request("w1@muc.test", "anna", "tok-1", 0, model.SurveyClientIntake, func(answers string) {
			got = answers
		})
		answerSurvey(env, "iq-1", "ready now")

		assert.Equal(t, "ready now", got)
		assert.Empty(t, env.chats.surveys, "intake answers have no conversation yet")
	})
}
