package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/notify"
	"github.com/vikaShenoy/Flockr-sub001/internal/repo"
)

// OnlineLister reports which of a set of users are connected.
// *presence.Registry satisfies it.
type OnlineLister interface {
	Online(ids []uuid.UUID) []uuid.UUID
}

// ChatService implements chat groups and messages.
type ChatService struct {
	chats  repo.ChatRepo
	users  repo.UserRepo
	pub    Publisher
	online OnlineLister
}

// NewChatService constructs a ChatService.
func NewChatService(chats repo.ChatRepo, users repo.UserRepo, pub Publisher, online OnlineLister) *ChatService {
	return &ChatService{chats: chats, users: users, pub: pub, online: online}
}

// CreateGroup starts a chat between actor and members.
func (s *ChatService) CreateGroup(ctx context.Context, actor domain.User, name string, members []uuid.UUID) (domain.ChatGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ChatGroup{}, fmt.Errorf("service.ChatService.CreateGroup: %w: name is required", domain.ErrMalformedInput)
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range members {
		if id == actor.ID {
			return domain.ChatGroup{}, fmt.Errorf("service.ChatService.CreateGroup: %w: the creator is added automatically", domain.ErrForbidden)
		}
		if id == uuid.Nil || seen[id] {
			return domain.ChatGroup{}, fmt.Errorf("service.ChatService.CreateGroup: %w: invalid or repeated member %s", domain.ErrMalformedInput, id)
		}
		seen[id] = true
	}
	if len(members) > 0 {
		if err := requireUsers(ctx, s.users, members); err != nil {
			return domain.ChatGroup{}, fmt.Errorf("service.ChatService.CreateGroup: %w", err)
		}
	}

	g, err := s.chats.CreateGroup(ctx, domain.ChatGroup{Name: name, Members: append([]uuid.UUID{actor.ID}, members...)})
	if err != nil {
		return domain.ChatGroup{}, fmt.Errorf("service.ChatService.CreateGroup: %w", err)
	}
	return g, nil
}

// Send posts text to groupID and notifies the other members.
func (s *ChatService) Send(ctx context.Context, actor domain.User, groupID uuid.UUID, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, fmt.Errorf("service.ChatService.Send: %w: message is empty", domain.ErrMalformedInput)
	}
	g, err := s.chats.GetGroup(ctx, groupID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("service.ChatService.Send: %w", err)
	}
	if !g.HasMember(actor.ID) {
		return domain.Message{}, fmt.Errorf("service.ChatService.Send: %w: not a member of the chat", domain.ErrForbidden)
	}

	msg, err := s.chats.CreateMessage(ctx, domain.Message{GroupID: groupID, SenderID: actor.ID, Contents: text})
	if err != nil {
		return domain.Message{}, fmt.Errorf("service.ChatService.Send: %w", err)
	}

	s.pub.Publish(notify.ChatMessage{
		GroupID:   groupID,
		Text:      msg.Contents,
		SenderID:  actor.ID,
		MessageID: msg.ID,
	}, actor.ID, g.Members)
	return msg, nil
}

// DeleteMessage removes a message. Only its sender may do so.
func (s *ChatService) DeleteMessage(ctx context.Context, actor domain.User, messageID uuid.UUID) error {
	msg, err := s.chats.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("service.ChatService.DeleteMessage: %w", err)
	}
	if msg.SenderID != actor.ID {
		return fmt.Errorf("service.ChatService.DeleteMessage: %w: only the sender can delete a message", domain.ErrForbidden)
	}
	g, err := s.chats.GetGroup(ctx, msg.GroupID)
	if err != nil {
		return fmt.Errorf("service.ChatService.DeleteMessage: %w", err)
	}
	if err := s.chats.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("service.ChatService.DeleteMessage: %w", err)
	}

	s.pub.Publish(notify.ChatDeleted{MessageID: messageID}, actor.ID, g.Members)
	return nil
}

// OnlineMembers returns the members of groupID that are connected right now.
func (s *ChatService) OnlineMembers(ctx context.Context, actor domain.User, groupID uuid.UUID) ([]uuid.UUID, error) {
	g, err := s.chats.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("service.ChatService.OnlineMembers: %w", err)
	}
	if !g.HasMember(actor.ID) && !actor.IsAdmin() {
		return nil, fmt.Errorf("service.ChatService.OnlineMembers: %w", domain.ErrForbidden)
	}
	return s.online.Online(g.Members), nil
}
