package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"schoolhub/internal/chat"
	"schoolhub/internal/model"
	"schoolhub/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	MaxMessageLength   = 4000
	DefaultMessagePage = 50
	MaxMessagePage     = 200
	DefaultSuggestions = 8
)

// Publisher fans an event out to the sockets subscribed to a group.
// The websocket hub implements it.
type Publisher interface {
	Publish(groupID uuid.UUID, payload []byte)
	// Join subscribes the user's open sockets to the group
	Join(groupID, userID uuid.UUID)
	Leave(groupID, userID uuid.UUID)
}

// Event is the frame pushed to websocket clients
type Event struct {
	Type    string      `json:"type"` // message, member_joined, member_left
	GroupID string      `json:"group_id"`
	Data    interface{} `json:"data"`
}

// --- DTOs ---

type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"member_ids"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type PostMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

type GroupSummary struct {
	model.Group
	Unread      int64          `json:"unread"`
	LastMessage *model.Message `json:"last_message,omitempty"`
}

// --- Interface ---

type ChatService interface {
	CreateGroup(ctx context.Context, userID string, req CreateGroupRequest) (*model.Group, error)
	ListGroups(ctx context.Context, userID string) ([]GroupSummary, error)
	GroupIDs(ctx context.Context, userID string) ([]uuid.UUID, error)
	ListMembers(ctx context.Context, userID, groupID string) ([]model.GroupMember, error)
	AddMember(ctx context.Context, userID, groupID string, req AddMemberRequest) (*model.GroupMember, error)
	RemoveMember(ctx context.Context, userID, groupID, memberID string) error

	PostMessage(ctx context.Context, userID, groupID string, req PostMessageRequest) (*model.Message, error)
	ListMessages(ctx context.Context, userID, groupID string, before *time.Time, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, userID, groupID string) error
	SuggestMentions(ctx context.Context, userID, groupID, query string, limit int) ([]chat.Member, error)
}

type chatService struct {
	repo      repository.ChatRepository
	userRepo  repository.UserRepository
	txManager repository.TransactionManager
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewChatService(
	repo repository.ChatRepository,
	userRepo repository.UserRepository,
	txManager repository.TransactionManager,
	publisher Publisher,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		repo:      repo,
		userRepo:  userRepo,
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// membership loads the group and checks that userID belongs to it.
// Non-members get ErrNotFound so group ids do not leak.
func (s *chatService) membership(ctx context.Context, userID, groupID string) (*model.Group, uuid.UUID, error) {
	uid, err := parseID("user", userID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	gid, err := parseID("group", groupID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	group, err := s.repo.FindGroup(ctx, gid)
	if err != nil {
		return nil, uuid.Nil, lookupErr("group", err)
	}
	for _, m := range group.Members {
		if m.UserID == uid {
			return group, uid, nil
		}
	}
	return nil, uuid.Nil, fmt.Errorf("group not found: %w", ErrNotFound)
}

func (s *chatService) memberFor(ctx context.Context, groupID uuid.UUID, userID string) (*model.GroupMember, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(lookupErr("user", err)) {
			return nil, invalid("user '%s' does not exist", userID)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &model.GroupMember{GroupID: groupID, UserID: user.ID, DisplayName: user.Name}, nil
}

func (s *chatService) publish(groupID uuid.UUID, kind string, data interface{}) {
	if s.publisher == nil {
		return
	}
	raw, err := json.Marshal(Event{Type: kind, GroupID: groupID.String(), Data: data})
	if err != nil {
		s.logger.Error("failed to encode chat event", zap.String("type", kind), zap.Error(err))
		return
	}
	s.publisher.Publish(groupID, raw)
}

// --- Groups ---

func (s *chatService) CreateGroup(ctx context.Context, userID string, req CreateGroupRequest) (*model.Group, error) {
	creator, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("name is required")
	}

	group := model.Group{Name: name, Description: req.Description, CreatedBy: creator}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateGroup(txCtx, &group); err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		ids := append([]string{userID}, req.MemberIDs...)
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, err := parseID("user", id); err != nil {
				return err
			}
			m, err := s.memberFor(txCtx, group.ID, id)
			if err != nil {
				return err
			}
			if err := s.repo.AddMember(txCtx, m); err != nil {
				return fmt.Errorf("failed to add group member: %w", err)
			}
			group.Members = append(group.Members, *m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		for _, m := range group.Members {
			s.publisher.Join(group.ID, m.UserID)
		}
	}
	return &group, nil
}

func (s *chatService) ListGroups(ctx context.Context, userID string) ([]GroupSummary, error) {
	uid, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	groups, err := s.repo.ListGroupsForUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch groups: %w", err)
	}

	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		summary := GroupSummary{Group: g}

		var since time.Time
		read, err := s.repo.GetRead(ctx, g.ID, uid)
		switch {
		case err == nil:
			since = read.LastReadAt
		case !isNotFound(lookupErr("read mark", err)):
			return nil, fmt.Errorf("failed to fetch read mark: %w", err)
		}
		if summary.Unread, err = s.repo.CountUnread(ctx, g.ID, uid, since); err != nil {
			return nil, fmt.Errorf("failed to count unread messages: %w", err)
		}

		last, err := s.repo.LatestMessage(ctx, g.ID)
		if err == nil {
			summary.LastMessage = last
		} else if !isNotFound(lookupErr("message", err)) {
			return nil, fmt.Errorf("failed to fetch latest message: %w", err)
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *chatService) GroupIDs(ctx context.Context, userID string) ([]uuid.UUID, error) {
	uid, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	ids, err := s.repo.ListGroupIDsForUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group ids: %w", err)
	}
	return ids, nil
}

func (s *chatService) ListMembers(ctx context.Context, userID, groupID string) ([]model.GroupMember, error) {
	group, _, err := s.membership(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}
	return members, nil
}

func (s *chatService) AddMember(ctx context.Context, userID, groupID string, req AddMemberRequest) (*model.GroupMember, error) {
	group, _, err := s.membership(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := parseID("user", req.UserID); err != nil {
		return nil, err
	}
	m, err := s.memberFor(ctx, group.ID, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddMember(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to add group member: %w", err)
	}
	if s.publisher != nil {
		s.publisher.Join(group.ID, m.UserID)
	}
	s.publish(group.ID, "member_joined", m)
	return m, nil
}

// RemoveMember lets members leave and lets the group's creator remove anyone
func (s *chatService) RemoveMember(ctx context.Context, userID, groupID, memberID string) error {
	group, uid, err := s.membership(ctx, userID, groupID)
	if err != nil {
		return err
	}
	target, err := parseID("user", memberID)
	if err != nil {
		return err
	}
	if target != uid && group.CreatedBy != uid {
		return fmt.Errorf("only the group creator can remove other members: %w", ErrForbidden)
	}
	if err := s.repo.RemoveMember(ctx, group.ID, target); err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	s.publish(group.ID, "member_left", map[string]string{"user_id": target.String()})
	if s.publisher != nil {
		s.publisher.Leave(group.ID, target)
	}
	return nil
}

// --- Messages ---

func (s *chatService) PostMessage(ctx context.Context, userID, groupID string, req PostMessageRequest) (*model.Message, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, invalid("message cannot be empty")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, invalid("message cannot be longer than %d characters", MaxMessageLength)
	}
	group, uid, err := s.membership(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	mentioned := chat.ExtractMentions(body, toChatMembers(group.Members))
	if mentioned == nil {
		mentioned = []uuid.UUID{}
	}
	raw, err := json.Marshal(mentioned)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mentions: %w", err)
	}

	msg := model.Message{
		GroupID:   group.ID,
		SenderID:  uid,
		Body:      body,
		Mentions:  datatypes.JSON(raw),
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	// the sender has read their own message
	if err := s.repo.UpsertRead(ctx, &model.GroupRead{GroupID: group.ID, UserID: uid, LastReadAt: msg.CreatedAt}); err != nil {
		s.logger.Warn("failed to advance sender read mark", zap.String("group_id", groupID), zap.Error(err))
	}

	s.publish(group.ID, "message", msg)
	return &msg, nil
}

func (s *chatService) ListMessages(ctx context.Context, userID, groupID string, before *time.Time, limit int) ([]model.Message, error) {
	group, _, err := s.membership(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessagePage
	}
	if limit > MaxMessagePage {
		limit = MaxMessagePage
	}
	msgs, err := s.repo.ListMessages(ctx, group.ID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return msgs, nil
}

func (s *chatService) MarkRead(ctx context.Context, userID, groupID string) error {
	group, uid, err := s.membership(ctx, userID, groupID)
	if err != nil {
		return err
	}
	read := model.GroupRead{GroupID: group.ID, UserID: uid, LastReadAt: s.now()}
	if err := s.repo.UpsertRead(ctx, &read); err != nil {
		return fmt.Errorf("failed to mark group read: %w", err)
	}
	return nil
}

func (s *chatService) SuggestMentions(ctx context.Context, userID, groupID, query string, limit int) ([]chat.Member, error) {
	group, uid, err := s.membership(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSuggestions
	}
	return chat.Suggest(toChatMembers(group.Members), query, uid, limit), nil
}

func toChatMembers(members []model.GroupMember) []chat.Member {
	out := make([]chat.Member, 0, len(members))
	for _, m := range members {
		out = append(out, chat.Member{UserID: m.UserID, Name: m.DisplayName})
	}
	return out
}
