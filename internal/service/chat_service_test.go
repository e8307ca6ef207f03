package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeChatRepo struct {
	groups   map[uuid.UUID]*model.Group
	messages []model.Message
	reads    map[[2]uuid.UUID]time.Time
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{groups: map[uuid.UUID]*model.Group{}, reads: map[[2]uuid.UUID]time.Time{}}
}

func (f *fakeChatRepo) CreateGroup(_ context.Context, g *model.Group) error {
	g.ID = uuid.New()
	cp := *g
	f.groups[g.ID] = &cp
	return nil
}

func (f *fakeChatRepo) FindGroup(_ context.Context, id uuid.UUID) (*model.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *g
	cp.Members = append([]model.GroupMember(nil), g.Members...)
	return &cp, nil
}

func (f *fakeChatRepo) ListGroupsForUser(_ context.Context, userID uuid.UUID) ([]model.Group, error) {
	var out []model.Group
	for _, g := range f.groups {
		for _, m := range g.Members {
			if m.UserID == userID {
				out = append(out, *g)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeChatRepo) ListGroupIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	groups, _ := f.ListGroupsForUser(ctx, userID)
	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

func (f *fakeChatRepo) AddMember(_ context.Context, m *model.GroupMember) error {
	g, ok := f.groups[m.GroupID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	g.Members = append(g.Members, *m)
	return nil
}

func (f *fakeChatRepo) RemoveMember(_ context.Context, groupID, userID uuid.UUID) error {
	g := f.groups[groupID]
	kept := g.Members[:0]
	for _, m := range g.Members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	g.Members = kept
	return nil
}

func (f *fakeChatRepo) ListMembers(_ context.Context, groupID uuid.UUID) ([]model.GroupMember, error) {
	return f.groups[groupID].Members, nil
}

func (f *fakeChatRepo) CreateMessage(_ context.Context, msg *model.Message) error {
	msg.ID = uuid.New()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeChatRepo) ListMessages(_ context.Context, groupID uuid.UUID, _ *time.Time, limit int) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.messages {
		if m.GroupID == groupID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeChatRepo) LatestMessage(_ context.Context, groupID uuid.UUID) (*model.Message, error) {
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].GroupID == groupID {
			m := f.messages[i]
			return &m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeChatRepo) CountUnread(_ context.Context, groupID, userID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	for _, m := range f.messages {
		if m.GroupID == groupID && m.SenderID != userID && m.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeChatRepo) GetRead(_ context.Context, groupID, userID uuid.UUID) (*model.GroupRead, error) {
	at, ok := f.reads[[2]uuid.UUID{groupID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.GroupRead{GroupID: groupID, UserID: userID, LastReadAt: at}, nil
}

func (f *fakeChatRepo) UpsertRead(_ context.Context, read *model.GroupRead) error {
	f.reads[[2]uuid.UUID{read.GroupID, read.UserID}] = read.LastReadAt
	return nil
}

// fakeUsers implements only GetByID; other methods panic through the nil embed
type fakeUsers struct {
	repository.UserRepository
	users map[string]*model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

type publishedEvent struct {
	group uuid.UUID
	event Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	joins  map[uuid.UUID][]uuid.UUID
	leaves map[uuid.UUID][]uuid.UUID
}

func (p *fakePublisher) Publish(groupID uuid.UUID, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ev Event
	if err := json.Unmarshal(payload, &ev); err == nil {
		p.events = append(p.events, publishedEvent{group: groupID, event: ev})
	}
}

func (p *fakePublisher) Join(groupID, userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.joins == nil {
		p.joins = map[uuid.UUID][]uuid.UUID{}
	}
	p.joins[groupID] = append(p.joins[groupID], userID)
}

func (p *fakePublisher) Leave(groupID, userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.leaves == nil {
		p.leaves = map[uuid.UUID][]uuid.UUID{}
	}
	p.leaves[groupID] = append(p.leaves[groupID], userID)
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event.Type)
	}
	return out
}

type chatFixture struct {
	svc   ChatService
	repo  *fakeChatRepo
	pub   *fakePublisher
	ada   *model.User
	grace *model.User
	alan  *model.User
	group *model.Group
}

func newChatFixture(t *testing.T) chatFixture {
	t.Helper()
	f := chatFixture{
		repo:  newFakeChatRepo(),
		pub:   &fakePublisher{},
		ada:   &model.User{ID: uuid.New(), Name: "Ada Lovelace"},
		grace: &model.User{ID: uuid.New(), Name: "Grace Hopper"},
		alan:  &model.User{ID: uuid.New(), Name: "Alan"},
	}
	users := &fakeUsers{users: map[string]*model.User{}}
	for _, u := range []*model.User{f.ada, f.grace, f.alan} {
		users.users[u.ID.String()] = u
	}
	svc := NewChatService(f.repo, users, &fakeTx{}, f.pub, zap.NewNop())
	svc.(*chatService).now = fixedNow
	f.svc = svc

	group, err := svc.CreateGroup(context.Background(), f.ada.ID.String(), CreateGroupRequest{
		Name:      "JSS2 Staff",
		MemberIDs: []string{f.grace.ID.String(), f.ada.ID.String()},
	})
	require.NoError(t, err)
	f.group = group
	return f
}

func TestCreateGroupAddsCreatorOnce(t *testing.T) {
	f := newChatFixture(t)

	require.Len(t, f.group.Members, 2)
	assert.Equal(t, f.ada.ID, f.group.Members[0].UserID)
	assert.Equal(t, "Grace Hopper", f.group.Members[1].DisplayName)
	assert.Len(t, f.pub.joins[f.group.ID], 2)

	_, err := f.svc.CreateGroup(context.Background(), f.ada.ID.String(), CreateGroupRequest{
		Name: "Ghosts", MemberIDs: []string{uuid.NewString()},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.CreateGroup(context.Background(), f.ada.ID.String(), CreateGroupRequest{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPostMessageExtractsMentionsAndPublishes(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	msg, err := f.svc.PostMessage(ctx, f.ada.ID.String(), f.group.ID.String(), PostMessageRequest{
		Body: "  @grace hopper can you cover period 3? also @Alan  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "@grace hopper can you cover period 3? also @Alan", msg.Body)
	assert.Equal(t, fixedNow(), msg.CreatedAt)

	var mentions []uuid.UUID
	require.NoError(t, json.Unmarshal(msg.Mentions, &mentions))
	assert.Equal(t, []uuid.UUID{f.grace.ID}, mentions, "only group members can be mentioned")

	assert.Equal(t, []string{"message"}, f.pub.types())
	assert.Equal(t, f.group.ID, f.pub.events[0].group)

	read, err := f.repo.GetRead(ctx, f.group.ID, f.ada.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.CreatedAt, read.LastReadAt, "the sender's read mark moves with their message")
}

func TestPostMessageValidation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostMessage(ctx, f.ada.ID.String(), f.group.ID.String(), PostMessageRequest{Body: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.PostMessage(ctx, f.ada.ID.String(), f.group.ID.String(), PostMessageRequest{
		Body: strings.Repeat("é", MaxMessageLength+1),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.PostMessage(ctx, f.ada.ID.String(), f.group.ID.String(), PostMessageRequest{
		Body: strings.Repeat("é", MaxMessageLength),
	})
	assert.NoError(t, err, "the limit counts characters, not bytes")

	_, err = f.svc.PostMessage(ctx, f.alan.ID.String(), f.group.ID.String(), PostMessageRequest{Body: "hi"})
	assert.ErrorIs(t, err, ErrNotFound, "non-members cannot see the group")
}

func TestListGroupsCountsUnread(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	for _, body := range []string{"one", "two"} {
		_, err := f.svc.PostMessage(ctx, f.ada.ID.String(), f.group.ID.String(), PostMessageRequest{Body: body})
		require.NoError(t, err)
	}

	groups, err := f.svc.ListGroups(ctx, f.grace.ID.String())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(2), groups[0].Unread)
	require.NotNil(t, groups[0].LastMessage)
	assert.Equal(t, "two", groups[0].LastMessage.Body)

	mine, err := f.svc.ListGroups(ctx, f.ada.ID.String())
	require.NoError(t, err)
	assert.Zero(t, mine[0].Unread)

	require.NoError(t, f.svc.MarkRead(ctx, f.grace.ID.String(), f.group.ID.String()))
	groups, err = f.svc.ListGroups(ctx, f.grace.ID.String())
	require.NoError(t, err)
	assert.Zero(t, groups[0].Unread)
}

func TestRemoveMember(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	gid := f.group.ID.String()

	_, err := f.svc.AddMember(ctx, f.grace.ID.String(), gid, AddMemberRequest{UserID: f.alan.ID.String()})
	require.NoError(t, err)

	err = f.svc.RemoveMember(ctx, f.grace.ID.String(), gid, f.alan.ID.String())
	assert.ErrorIs(t, err, ErrForbidden, "only the creator removes others")

	require.NoError(t, f.svc.RemoveMember(ctx, f.alan.ID.String(), gid, f.alan.ID.String()))
	require.NoError(t, f.svc.RemoveMember(ctx, f.ada.ID.String(), gid, f.grace.ID.String()))

	members, err := f.svc.ListMembers(ctx, f.ada.ID.String(), gid)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, f.ada.ID, members[0].UserID)
	assert.Equal(t, []string{"member_joined", "member_left", "member_left"}, f.pub.types())
	assert.Equal(t, []uuid.UUID{f.alan.ID, f.grace.ID}, f.pub.leaves[f.group.ID], "removed members stop receiving pushes")
}

func TestSuggestMentionsExcludesAuthor(t *testing.T) {
	f := newChatFixture(t)

	got, err := f.svc.SuggestMentions(context.Background(), f.ada.ID.String(), f.group.ID.String(), "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f.grace.ID, got[0].UserID)
}
