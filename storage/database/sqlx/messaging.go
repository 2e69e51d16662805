package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/somesha/core/messaging"
)

const (
	conversationColumns = `id, title, course_id, created_by_id, created_at, updated_at`
	participantColumns  = `id, conversation_id, user_id, joined_at, last_read_at`
	messageColumns      = `id, conversation_id, sender_id, body, is_edited, created_at, updated_at`
	readColumns         = `id, message_id, user_id, read_at`
)

type messagingRepository struct {
	db executor
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *sqlx.DB) *messagingRepository {
	return &messagingRepository{db: db}
}

func (repo *messagingRepository) CreateConversation(ctx context.Context, c messaging.Conversation) (messaging.Conversation, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES (:id, :title, :course_id, :created_by_id, :created_at, :updated_at)`,
		c,
	)
	return c, err
}

func (repo *messagingRepository) GetConversation(ctx context.Context, id string) (messaging.Conversation, error) {
	var c messaging.Conversation
	err := repo.db.GetContext(ctx, &c, "SELECT "+conversationColumns+" FROM conversations WHERE id = $1", id)
	return c, trapNoRowsErr(err, messaging.ErrConversationNotFound)
}

func (repo *messagingRepository) QueryConversations(ctx context.Context, filter messaging.ConversationFilter) ([]messaging.Conversation, error) {
	var w where
	if filter.ParticipantID != "" {
		w.add("id IN (SELECT conversation_id FROM participants WHERE user_id = ?)", filter.ParticipantID)
	}
	convs := make([]messaging.Conversation, 0)
	err := selectWhere(ctx, repo.db, &convs, "SELECT "+conversationColumns+" FROM conversations", w, " ORDER BY updated_at DESC")
	return convs, err
}

func (repo *messagingRepository) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE conversations SET updated_at = $2 WHERE id = $1", id, at.UTC())
	return mustAffect(res, err, messaging.ErrConversationNotFound)
}

func (repo *messagingRepository) AddParticipant(ctx context.Context, p messaging.Participant) (messaging.Participant, bool, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO participants (`+participantColumns+`)
		VALUES (:id, :conversation_id, :user_id, :joined_at, :last_read_at)
		ON CONFLICT (conversation_id, user_id) DO NOTHING`,
		p,
	)
	if err != nil {
		return messaging.Participant{}, false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return messaging.Participant{}, false, err
	} else if n == 1 {
		return p, true, nil
	}
	existing, err := repo.GetParticipant(ctx, p.ConversationID, p.UserID)
	return existing, false, err
}

func (repo *messagingRepository) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM participants WHERE conversation_id = $1 AND user_id = $2", conversationID, userID)
	return err
}

func (repo *messagingRepository) GetParticipant(ctx context.Context, conversationID, userID string) (messaging.Participant, error) {
	var p messaging.Participant
	err := repo.db.GetContext(ctx, &p, `
		SELECT `+participantColumns+` FROM participants WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	return p, trapNoRowsErr(err, messaging.ErrConversationNotFound)
}

func (repo *messagingRepository) QueryParticipants(ctx context.Context, conversationID string) ([]messaging.Participant, error) {
	parts := make([]messaging.Participant, 0)
	err := repo.db.SelectContext(ctx, &parts, `
		SELECT `+participantColumns+` FROM participants WHERE conversation_id = $1 ORDER BY joined_at`,
		conversationID,
	)
	return parts, err
}

func (repo *messagingRepository) SetLastRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE participants SET last_read_at = $3 WHERE conversation_id = $1 AND user_id = $2",
		conversationID, userID, at.UTC(),
	)
	return err
}

func (repo *messagingRepository) CreateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (:id, :conversation_id, :sender_id, :body, :is_edited, :created_at, :updated_at)`,
		m,
	)
	return m, err
}

func (repo *messagingRepository) GetMessage(ctx context.Context, id string) (messaging.Message, error) {
	var m messaging.Message
	err := repo.db.GetContext(ctx, &m, "SELECT "+messageColumns+" FROM messages WHERE id = $1", id)
	return m, trapNoRowsErr(err, messaging.ErrMessageNotFound)
}

func (repo *messagingRepository) QueryMessages(ctx context.Context, filter messaging.MessageFilter) ([]messaging.Message, error) {
	var w where
	if filter.ConversationID != "" {
		w.add("conversation_id = ?", filter.ConversationID)
	}
	if filter.ParticipantID != "" {
		w.add("conversation_id IN (SELECT conversation_id FROM participants WHERE user_id = ?)", filter.ParticipantID)
	}
	msgs := make([]messaging.Message, 0)
	err := selectWhere(ctx, repo.db, &msgs, "SELECT "+messageColumns+" FROM messages", w, " ORDER BY created_at")
	return msgs, err
}

func (repo *messagingRepository) UpdateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	res, err := repo.db.NamedExecContext(ctx,
		"UPDATE messages SET body = :body, is_edited = :is_edited, updated_at = :updated_at WHERE id = :id",
		m,
	)
	if err = mustAffect(res, err, messaging.ErrMessageNotFound); err != nil {
		return messaging.Message{}, err
	}
	return m, nil
}

func (repo *messagingRepository) DeleteMessage(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM messages WHERE id = $1", id)
	return mustAffect(res, err, messaging.ErrMessageNotFound)
}

func (repo *messagingRepository) LastMessage(ctx context.Context, conversationID string) (*messaging.Message, error) {
	var msgs []messaging.Message
	err := repo.db.SelectContext(ctx, &msgs, `
		SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1
		ORDER BY created_at DESC LIMIT 1`,
		conversationID,
	)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

func (repo *messagingRepository) CountUnread(ctx context.Context, conversationID, userID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM messages m
		WHERE m.conversation_id = $1 AND m.sender_id <> $2
			AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $2)`,
		conversationID, userID,
	)
	return n, err
}

func (repo *messagingRepository) MarkRead(ctx context.Context, r messaging.Read) (messaging.Read, bool, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO message_reads (`+readColumns+`)
		VALUES (:id, :message_id, :user_id, :read_at)
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		r,
	)
	if err != nil {
		return messaging.Read{}, false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return messaging.Read{}, false, err
	} else if n == 1 {
		return r, true, nil
	}

	var existing messaging.Read
	err = repo.db.GetContext(ctx, &existing, `
		SELECT `+readColumns+` FROM message_reads WHERE message_id = $1 AND user_id = $2`,
		r.MessageID, r.UserID,
	)
	return existing, false, err
}
