package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core/messaging"
)

type messagingRepository struct {
	db *DB
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *DB) *messagingRepository {
	return &messagingRepository{db: db}
}

func (repo *messagingRepository) CreateConversation(_ context.Context, c messaging.Conversation) (messaging.Conversation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.conversations[c.ID] = c
	return c, nil
}

func (repo *messagingRepository) GetConversation(_ context.Context, id string) (messaging.Conversation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if c, ok := repo.db.conversations[id]; ok {
		return c, nil
	}
	return messaging.Conversation{}, messaging.ErrConversationNotFound
}

// participates reports whether the user takes part in the conversation; callers hold the lock.
func (db *DB) participates(conversationID, userID string) bool {
	for _, p := range db.participants {
		if p.ConversationID == conversationID && p.UserID == userID {
			return true
		}
	}
	return false
}

func (repo *messagingRepository) QueryConversations(_ context.Context, filter messaging.ConversationFilter) ([]messaging.Conversation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	convs := values(repo.db.conversations, func(c messaging.Conversation) bool {
		return filter.ParticipantID == "" || repo.db.participates(c.ID, filter.ParticipantID)
	})
	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs, nil
}

func (repo *messagingRepository) TouchConversation(_ context.Context, id string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	c, ok := repo.db.conversations[id]
	if !ok {
		return messaging.ErrConversationNotFound
	}
	c.UpdatedAt = at.UTC()
	repo.db.conversations[id] = c
	return nil
}

func (repo *messagingRepository) AddParticipant(_ context.Context, p messaging.Participant) (messaging.Participant, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.participants {
		if existing.ConversationID == p.ConversationID && existing.UserID == p.UserID {
			return existing, false, nil
		}
	}
	repo.db.participants[p.ID] = p
	return p, true, nil
}

func (repo *messagingRepository) RemoveParticipant(_ context.Context, conversationID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for id, p := range repo.db.participants {
		if p.ConversationID == conversationID && p.UserID == userID {
			delete(repo.db.participants, id)
		}
	}
	return nil
}

func (repo *messagingRepository) GetParticipant(_ context.Context, conversationID, userID string) (messaging.Participant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, p := range repo.db.participants {
		if p.ConversationID == conversationID && p.UserID == userID {
			return p, nil
		}
	}
	return messaging.Participant{}, messaging.ErrConversationNotFound
}

func (repo *messagingRepository) QueryParticipants(_ context.Context, conversationID string) ([]messaging.Participant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	parts := values(repo.db.participants, func(p messaging.Participant) bool { return p.ConversationID == conversationID })
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].JoinedAt.Before(parts[j].JoinedAt) })
	return parts, nil
}

func (repo *messagingRepository) SetLastRead(_ context.Context, conversationID, userID string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for id, p := range repo.db.participants {
		if p.ConversationID == conversationID && p.UserID == userID {
			p.LastReadAt = null.TimeFrom(at.UTC())
			repo.db.participants[id] = p
		}
	}
	return nil
}

func (repo *messagingRepository) CreateMessage(_ context.Context, m messaging.Message) (messaging.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.messages[m.ID] = m
	return m, nil
}

func (repo *messagingRepository) GetMessage(_ context.Context, id string) (messaging.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if m, ok := repo.db.messages[id]; ok {
		return m, nil
	}
	return messaging.Message{}, messaging.ErrMessageNotFound
}

func sortMessages(msgs []messaging.Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
}

func (repo *messagingRepository) QueryMessages(_ context.Context, filter messaging.MessageFilter) ([]messaging.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	msgs := values(repo.db.messages, func(m messaging.Message) bool {
		if filter.ConversationID != "" && m.ConversationID != filter.ConversationID {
			return false
		}
		return filter.ParticipantID == "" || repo.db.participates(m.ConversationID, filter.ParticipantID)
	})
	sortMessages(msgs)
	return msgs, nil
}

func (repo *messagingRepository) UpdateMessage(_ context.Context, m messaging.Message) (messaging.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	orig, ok := repo.db.messages[m.ID]
	if !ok {
		return messaging.Message{}, messaging.ErrMessageNotFound
	}
	orig.Body = m.Body
	orig.IsEdited = m.IsEdited
	orig.UpdatedAt = m.UpdatedAt
	repo.db.messages[m.ID] = orig
	return orig, nil
}

func (repo *messagingRepository) DeleteMessage(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.messages[id]; !ok {
		return messaging.ErrMessageNotFound
	}
	for rid, r := range repo.db.reads {
		if r.MessageID == id {
			delete(repo.db.reads, rid)
		}
	}
	delete(repo.db.messages, id)
	return nil
}

func (repo *messagingRepository) LastMessage(_ context.Context, conversationID string) (*messaging.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	msgs := values(repo.db.messages, func(m messaging.Message) bool { return m.ConversationID == conversationID })
	if len(msgs) == 0 {
		return nil, nil
	}
	sortMessages(msgs)
	last := msgs[len(msgs)-1]
	return &last, nil
}

func (repo *messagingRepository) CountUnread(_ context.Context, conversationID, userID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	read := make(map[string]bool)
	for _, r := range repo.db.reads {
		if r.UserID == userID {
			read[r.MessageID] = true
		}
	}
	var n int
	for _, m := range repo.db.messages {
		if m.ConversationID == conversationID && m.SenderID != userID && !read[m.ID] {
			n++
		}
	}
	return n, nil
}

func (repo *messagingRepository) MarkRead(_ context.Context, r messaging.Read) (messaging.Read, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.reads {
		if existing.MessageID == r.MessageID && existing.UserID == r.UserID {
			return existing, false, nil
		}
	}
	repo.db.reads[r.ID] = r
	return r, true, nil
}
