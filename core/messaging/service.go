package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
)

var (
	// errors
	ErrConversationNotFound = core.NewNotFoundError("conversation")
	ErrMessageNotFound      = core.NewNotFoundError("message")

	errNotParticipant = core.NewPermissionError("You are not a participant in this conversation.")
)

type (
	Repository interface {
		CreateConversation(ctx context.Context, c Conversation) (Conversation, error)
		GetConversation(ctx context.Context, id string) (Conversation, error)
		QueryConversations(ctx context.Context, filter ConversationFilter) ([]Conversation, error)
		TouchConversation(ctx context.Context, id string, at time.Time) error

		// AddParticipant returns the existing participant untouched, or creates p.
		// The bool reports whether the participant was created.
		AddParticipant(ctx context.Context, p Participant) (Participant, bool, error)
		RemoveParticipant(ctx context.Context, conversationID, userID string) error
		GetParticipant(ctx context.Context, conversationID, userID string) (Participant, error)
		QueryParticipants(ctx context.Context, conversationID string) ([]Participant, error)
		SetLastRead(ctx context.Context, conversationID, userID string, at time.Time) error

		CreateMessage(ctx context.Context, m Message) (Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		QueryMessages(ctx context.Context, filter MessageFilter) ([]Message, error)
		UpdateMessage(ctx context.Context, m Message) (Message, error)
		DeleteMessage(ctx context.Context, id string) error
		// LastMessage returns nil when the conversation has no message.
		LastMessage(ctx context.Context, conversationID string) (*Message, error)
		// CountUnread counts the messages of the conversation not sent nor read by userID.
		CountUnread(ctx context.Context, conversationID, userID string) (int, error)

		// MarkRead returns the existing read receipt untouched, or creates r.
		MarkRead(ctx context.Context, r Read) (Read, bool, error)
	}

	Catalog interface {
		GetCourse(ctx context.Context, a access.Actor, id string) (catalog.Course, error)
	}

	Enrollments interface {
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
		CourseStudentIDs(ctx context.Context, courseID string) ([]string, error)
	}

	Service struct {
		repo        Repository
		catalog     Catalog
		enrollments Enrollments
		events      core.EventPublisher
		logger      core.Logger
	}
)

func NewService(repo Repository, cat Catalog, enrollments Enrollments, events core.EventPublisher, logger core.Logger) *Service {
	return &Service{repo: repo, catalog: cat, enrollments: enrollments, events: events, logger: logger}
}

func (svc *Service) isParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if _, err := svc.repo.GetParticipant(ctx, conversationID, userID); err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "getting participant")
	}
	return true, nil
}

// CreateConversation starts a conversation with a as a participant.
//
// Course conversations require students to be enrolled and instructors to teach the course.
// The course instructor joins conversations started by students & admins; enrolled students
// join when include_course_students is set by an instructor or admin.
func (svc *Service) CreateConversation(ctx context.Context, a access.Actor, nc NewConversation) (ConversationDetail, error) {
	if err := access.Require(a, access.Converse, "You cannot start conversations."); err != nil {
		return ConversationDetail{}, err
	}

	participantIDs := make([]string, 0, len(nc.ParticipantIDs)+1)
	participantIDs = append(participantIDs, nc.ParticipantIDs...)

	var course catalog.Course
	if nc.CourseID != "" {
		var err error
		if course, err = svc.catalog.GetCourse(ctx, a, nc.CourseID); err != nil {
			if core.IsNotFound(err) {
				return ConversationDetail{}, core.NewFieldError("course_id", err.Error())
			}
			return ConversationDetail{}, err
		}

		switch {
		case a.IsStudent():
			enrolled, err := svc.enrollments.IsEnrolled(ctx, a.ID, course.ID)
			if err != nil {
				return ConversationDetail{}, err
			}
			if !enrolled {
				return ConversationDetail{}, core.NewPermissionError("You must be enrolled in this course to start a conversation.")
			}
			participantIDs = append(participantIDs, course.InstructorID)
		case a.IsInstructor() && course.InstructorID != a.ID:
			return ConversationDetail{}, core.NewPermissionError("You must be the instructor for this course.")
		case a.IsAdmin():
			participantIDs = append(participantIDs, course.InstructorID)
		}

		if nc.IncludeCourseStudents && !a.IsStudent() {
			studentIDs, err := svc.enrollments.CourseStudentIDs(ctx, course.ID)
			if err != nil {
				return ConversationDetail{}, err
			}
			participantIDs = append(participantIDs, studentIDs...)
		}
	}

	now := time.Now().UTC()
	conv, err := svc.repo.CreateConversation(ctx, Conversation{
		ID:          uuid.New().String(),
		Title:       core.CleanString(nc.Title),
		CourseID:    null.NewString(course.ID, course.ID != ""),
		CreatedByID: a.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return ConversationDetail{}, errors.Wrap(err, "creating conversation")
	}

	seen := map[string]bool{}
	for _, uid := range append([]string{a.ID}, participantIDs...) {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		if _, _, err = svc.repo.AddParticipant(ctx, newParticipant(conv.ID, uid, now)); err != nil {
			return ConversationDetail{}, errors.Wrap(err, "adding participant")
		}
	}
	return svc.detail(ctx, a, conv)
}

func newParticipant(conversationID, userID string, at time.Time) Participant {
	return Participant{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       at,
	}
}

func (svc *Service) detail(ctx context.Context, a access.Actor, conv Conversation) (ConversationDetail, error) {
	parts, err := svc.repo.QueryParticipants(ctx, conv.ID)
	if err != nil {
		return ConversationDetail{}, errors.Wrap(err, "querying participants")
	}
	last, err := svc.repo.LastMessage(ctx, conv.ID)
	if err != nil {
		return ConversationDetail{}, errors.Wrap(err, "getting last message")
	}
	unread, err := svc.repo.CountUnread(ctx, conv.ID, a.ID)
	if err != nil {
		return ConversationDetail{}, errors.Wrap(err, "counting unread messages")
	}
	return ConversationDetail{Conversation: conv, Participants: parts, LastMessage: last, UnreadCount: unread}, nil
}

// conversation returns the conversation if a takes part in it or moderates messages.
func (svc *Service) conversation(ctx context.Context, a access.Actor, id string) (Conversation, error) {
	conv, err := svc.repo.GetConversation(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if access.Can(a, access.ModerateMessages) {
		return conv, nil
	}
	ok, err := svc.isParticipant(ctx, conv.ID, a.ID)
	if err != nil {
		return Conversation{}, err
	}
	if !ok {
		return Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

func (svc *Service) ListConversations(ctx context.Context, a access.Actor) ([]ConversationDetail, error) {
	var filter ConversationFilter
	if !access.Can(a, access.ModerateMessages) {
		filter.ParticipantID = a.ID
	}
	convs, err := svc.repo.QueryConversations(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	details := make([]ConversationDetail, 0, len(convs))
	for _, conv := range convs {
		d, err := svc.detail(ctx, a, conv)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

func (svc *Service) GetConversation(ctx context.Context, a access.Actor, id string) (ConversationDetail, error) {
	conv, err := svc.conversation(ctx, a, id)
	if err != nil {
		return ConversationDetail{}, err
	}
	return svc.detail(ctx, a, conv)
}

// AddParticipant adds userID to the conversation. The bool reports whether the user just joined.
func (svc *Service) AddParticipant(ctx context.Context, a access.Actor, conversationID, userID string) (Participant, bool, error) {
	conv, err := svc.conversation(ctx, a, conversationID)
	if err != nil {
		return Participant{}, false, err
	}
	if err = access.RequireOwnerOrAdmin(a, conv.CreatedByID, "You do not have permission to add participants."); err != nil {
		return Participant{}, false, err
	}
	if userID == "" {
		return Participant{}, false, core.NewFieldError("user_id", "user_id is required.")
	}
	p, created, err := svc.repo.AddParticipant(ctx, newParticipant(conv.ID, userID, time.Now().UTC()))
	if err != nil {
		return Participant{}, false, errors.Wrap(err, "adding participant")
	}
	return p, created, nil
}

func (svc *Service) RemoveParticipant(ctx context.Context, a access.Actor, conversationID, userID string) error {
	conv, err := svc.conversation(ctx, a, conversationID)
	if err != nil {
		return err
	}
	if err = access.RequireOwnerOrAdmin(a, conv.CreatedByID, "You do not have permission to remove participants."); err != nil {
		return err
	}
	if userID == "" {
		return core.NewFieldError("user_id", "user_id is required.")
	}
	return errors.Wrap(svc.repo.RemoveParticipant(ctx, conv.ID, userID), "removing participant")
}

// Messages

// SendMessage posts a message; it counts as read by its sender.
func (svc *Service) SendMessage(ctx context.Context, a access.Actor, nm NewMessage) (Message, error) {
	conv, err := svc.repo.GetConversation(ctx, nm.ConversationID)
	if err != nil {
		if core.IsNotFound(err) {
			return Message{}, core.NewFieldError("conversation_id", err.Error())
		}
		return Message{}, err
	}
	ok, err := svc.isParticipant(ctx, conv.ID, a.ID)
	if err != nil {
		return Message{}, err
	}
	if !ok {
		return Message{}, errNotParticipant
	}

	now := time.Now().UTC()
	msg, err := svc.repo.CreateMessage(ctx, Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       a.ID,
		Body:           nm.Body,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	if _, _, err = svc.repo.MarkRead(ctx, Read{ID: uuid.New().String(), MessageID: msg.ID, UserID: a.ID, ReadAt: now}); err != nil {
		return Message{}, errors.Wrap(err, "marking message read")
	}
	if err = svc.repo.SetLastRead(ctx, conv.ID, a.ID, now); err != nil {
		return Message{}, errors.Wrap(err, "setting last read")
	}
	if err = svc.repo.TouchConversation(ctx, conv.ID, now); err != nil {
		return Message{}, errors.Wrap(err, "touching conversation")
	}
	core.PublishEvents(ctx, svc.events, svc.logger, core.NewEvent(core.EventMessageSent, conv.ID, a.ID, msg))
	return msg, nil
}

func (svc *Service) ListMessages(ctx context.Context, a access.Actor, conversationID string) ([]Message, error) {
	filter := MessageFilter{ConversationID: conversationID}
	if !access.Can(a, access.ModerateMessages) {
		filter.ParticipantID = a.ID
	}
	msgs, err := svc.repo.QueryMessages(ctx, filter)
	return msgs, errors.Wrap(err, "querying messages")
}

func (svc *Service) GetMessage(ctx context.Context, a access.Actor, id string) (Message, error) {
	msg, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if _, err = svc.conversation(ctx, a, msg.ConversationID); err != nil {
		if core.IsNotFound(err) {
			return Message{}, ErrMessageNotFound
		}
		return Message{}, err
	}
	return msg, nil
}

func (svc *Service) EditMessage(ctx context.Context, a access.Actor, id string, um UpdateMessage) (Message, error) {
	msg, err := svc.GetMessage(ctx, a, id)
	if err != nil {
		return Message{}, err
	}
	if err = access.RequireOwnerOrAdmin(a, msg.SenderID, "You cannot edit this message."); err != nil {
		return Message{}, err
	}
	msg.Body = um.Body
	msg.IsEdited = true
	msg.UpdatedAt = time.Now().UTC()
	msg, err = svc.repo.UpdateMessage(ctx, msg)
	return msg, errors.Wrap(err, "updating message")
}

func (svc *Service) DeleteMessage(ctx context.Context, a access.Actor, id string) error {
	msg, err := svc.GetMessage(ctx, a, id)
	if err != nil {
		return err
	}
	if err = access.RequireOwnerOrAdmin(a, msg.SenderID, "You cannot delete this message."); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteMessage(ctx, msg.ID), "deleting message")
}

// MarkRead records that a read the message. The bool reports whether the receipt is new.
func (svc *Service) MarkRead(ctx context.Context, a access.Actor, messageID string) (Read, bool, error) {
	msg, err := svc.GetMessage(ctx, a, messageID)
	if err != nil {
		return Read{}, false, err
	}
	ok, err := svc.isParticipant(ctx, msg.ConversationID, a.ID)
	if err != nil {
		return Read{}, false, err
	}
	if !ok {
		return Read{}, false, errNotParticipant
	}
	now := time.Now().UTC()
	read, created, err := svc.repo.MarkRead(ctx, Read{ID: uuid.New().String(), MessageID: msg.ID, UserID: a.ID, ReadAt: now})
	if err != nil {
		return Read{}, false, errors.Wrap(err, "marking message read")
	}
	if err = svc.repo.SetLastRead(ctx, msg.ConversationID, a.ID, now); err != nil {
		return Read{}, false, errors.Wrap(err, "setting last read")
	}
	return read, created, nil
}
