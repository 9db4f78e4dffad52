package bot

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
	"github.com/careline/roompool-bot/internal/repository"
)

type pendingSurvey struct {
	chatID   int64
	position model.SurveyPosition
	token    string
	onDone   func(answers string)
}

// surveyTracker sends out-of-band survey requests and matches the
// asynchronous replies back to the pending entry by correlation id.
type surveyTracker struct {
	conn    Conn
	chats   repository.ChatRepository
	log     zerolog.Logger
	pending map[string]pendingSurvey
}

func newSurveyTracker(conn Conn, chats repository.ChatRepository, log zerolog.Logger) *surveyTracker {
	return &surveyTracker{
		conn:    conn,
		chats:   chats,
		log:     log.With().Str("component", "surveys").Logger(),
		pending: make(map[string]pendingSurvey),
	}
}

// request issues a survey to one participant. A chatID of zero means the
// answer has no conversation to attach to yet (intake surveys); onDone, if
// set, runs once the answer arrives.
func (t *surveyTracker) request(room, nick, token string, chatID int64, position model.SurveyPosition, onDone func(string)) {
	id, err := t.conn.SendSurvey(room, nick, muc.SurveyRequest{
		Position: string(position),
		Token:    token,
	})
	if err != nil {
		t.log.Warn().Err(err).Str("room", room).Str("nick", nick).Msg("survey request failed")
		return
	}
	t.pending[id] = pendingSurvey{chatID: chatID, position: position, token: token, onDone: onDone}
	t.log.Debug().Str("id", id).Str("position", string(position)).Msg("survey requested")
}

func (t *surveyTracker) handle(ctx context.Context, iq muc.IQ) {
	p, ok := t.pending[iq.ID]
	if !ok {
		t.log.Debug().Str("id", iq.ID).Msg("reply to unknown survey, ignoring")
		return
	}
	delete(t.pending, iq.ID)

	if iq.Type == muc.IQError {
		t.log.Warn().Str("id", iq.ID).Str("position", string(p.position)).Msg("survey declined")
		return
	}

	result, err := muc.ParseSurveyResult(iq)
	if err != nil {
		t.log.Warn().Err(err).Str("id", iq.ID).Msg("malformed survey reply, ignoring")
		return
	}

	if p.chatID != 0 {
		if err := t.chats.AttachSurvey(ctx, p.chatID, p.position, p.token, result.Answers); err != nil {
			t.log.Error().Err(err).Str("id", iq.ID).Msg("failed to record survey answers")
		}
	}
	if p.onDone != nil {
		p.onDone(result.Answers)
	}
}

func (t *surveyTracker) pendingCount() int {
	return len(t.pending)
}
