package message

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-service/internal/apperr"
	"chat-service/internal/conversation"
	"chat-service/internal/notify"
	"chat-service/internal/s3test"
	"chat-service/internal/storage/s3"
	"chat-service/internal/user"
	"chat-service/internal/ws"
)

type fakeRepo struct {
	messages map[uint]*Message
	nextID   uint

	reactions []Reaction
	deleted   []uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{messages: map[uint]*Message{}, nextID: 1}
}

func (f *fakeRepo) Create(m *Message) error {
	m.ID = f.nextID
	f.nextID++
	m.CreatedAt = time.Now()
	cp := *m
	f.messages[m.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(id uint) (*Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, apperr.NotFound("message not found")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeRepo) ListByConversation(conversationID uint, cursor uint, limit int) ([]Message, error) {
	var out []Message
	for id := f.nextID; id > 0 && len(out) < limit; id-- {
		m, ok := f.messages[id]
		if !ok || m.ConversationID != conversationID {
			continue
		}
		if cursor > 0 && id >= cursor {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeRepo) DeleteWithReactions(id uint) error {
	delete(f.messages, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepo) UpsertReaction(r *Reaction) error {
	for _, x := range f.reactions {
		if x.MessageID == r.MessageID && x.UserID == r.UserID && x.Emoji == r.Emoji {
			return nil
		}
	}
	f.reactions = append(f.reactions, *r)
	return nil
}

func (f *fakeRepo) DeleteReaction(messageID, userID uint, emoji string) error {
	kept := f.reactions[:0]
	for _, x := range f.reactions {
		if x.MessageID == messageID && x.UserID == userID && x.Emoji == emoji {
			continue
		}
		kept = append(kept, x)
	}
	f.reactions = kept
	return nil
}

func (f *fakeRepo) ReactionsOf(messageID uint) ([]Reaction, error) {
	var out []Reaction
	for _, x := range f.reactions {
		if x.MessageID == messageID {
			out = append(out, x)
		}
	}
	return out, nil
}

type fakeConvs struct {
	mu sync.Mutex

	member    *conversation.Member
	memberErr error
	members   []conversation.Member

	touched []uint
	marked  []uint
}

func (f *fakeConvs) List(uint) ([]conversation.ListItem, error) { return nil, nil }
func (f *fakeConvs) Create(context.Context, uint, conversation.CreateReq, *conversation.Upload) (*conversation.Detail, bool, error) {
	return nil, false, nil
}
func (f *fakeConvs) Get(uint, uint) (*conversation.Detail, error) { return nil, nil }
func (f *fakeConvs) IsMember(uint, uint) (bool, error)            { return f.memberErr == nil, nil }
func (f *fakeConvs) Members(uint) ([]conversation.Member, error)  { return f.members, nil }

func (f *fakeConvs) GetMember(conversationID, userID uint) (*conversation.Member, error) {
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	if f.member != nil {
		return f.member, nil
	}
	return &conversation.Member{ConversationID: conversationID, UserID: userID}, nil
}

func (f *fakeConvs) MarkRead(conversationID, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, conversationID)
	return nil
}

func (f *fakeConvs) Touch(conversationID uint, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, conversationID)
	return nil
}

func (f *fakeConvs) Leave(uint, uint) error                   { return nil }
func (f *fakeConvs) Delete(context.Context, uint, uint) error { return nil }
func (f *fakeConvs) ServeAvatar(context.Context, uint) (*s3.Object, error) {
	return nil, nil
}
func (f *fakeConvs) SetTyping(context.Context, uint, uint) error { return nil }
func (f *fakeConvs) ListTyping(context.Context, uint, uint) ([]user.Public, error) {
	return nil, nil
}

type fakeHub struct {
	mu     sync.Mutex
	events []ws.Event
	rooms  []string
}

func (f *fakeHub) Emit(room string, ev ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, room)
	f.events = append(f.events, ev)
}

func (f *fakeHub) EmitToUsers(userIDs []uint, ev ws.Event) {
	for _, id := range userIDs {
		f.Emit(ws.UserRoom(id), ev)
	}
}

func (f *fakeHub) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

type fakePub struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakePub) Publish(_ context.Context, _ string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, value)
	return nil
}

func newTestService() (Service, *fakeRepo, *fakeConvs, *s3test.Store, *fakeHub, *fakePub) {
	repo := newFakeRepo()
	convs := &fakeConvs{}
	store := s3test.New()
	hub := &fakeHub{}
	pub := &fakePub{}
	return NewService(repo, convs, store, hub, pub), repo, convs, store, hub, pub
}

func TestSendTextRequiresContent(t *testing.T) {
	svc, _, _, _, _, _ := newTestService()

	_, err := svc.SendText(context.Background(), 1, 1, SendReq{Content: "   "})

	var ae *apperr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeInvalidArgument, ae.Code)
	assert.Equal(t, "Content is required", ae.Message)
}

func TestSendTextRejectsNonMember(t *testing.T) {
	svc, _, convs, _, _, _ := newTestService()
	convs.memberErr = apperr.Forbidden("Access denied")

	_, err := svc.SendText(context.Background(), 1, 99, SendReq{Content: "hi"})

	var ae *apperr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodePermissionDenied, ae.Code)
}

func TestSendTextBroadcastsAndPublishes(t *testing.T) {
	svc, _, convs, _, hub, pub := newTestService()
	convs.members = []conversation.Member{
		{ConversationID: 7, UserID: 1, User: user.User{ID: 1, Name: "Alice"}},
		{ConversationID: 7, UserID: 2, User: user.User{ID: 2, Name: "Bob"}},
	}

	v, err := svc.SendText(context.Background(), 7, 1, SendReq{Content: EncodeContent("hello bob")})
	require.NoError(t, err)
	assert.Equal(t, uint(7), v.ConversationID)
	assert.NotNil(t, v.Reactions)

	assert.Contains(t, hub.eventTypes(), EventNewMessage)
	assert.Contains(t, hub.eventTypes(), conversation.EventConversationUpdated)

	require.Len(t, pub.messages, 1)
	var it notify.Intent
	require.NoError(t, json.Unmarshal(pub.messages[0], &it))
	assert.Equal(t, "hello bob", it.Text, "intent text must be decoded")
	require.Len(t, it.Recipients, 1)
	assert.Equal(t, uint(2), it.Recipients[0].ID, "sender is not a recipient")
}

func TestSendTextRejectsClientSuppliedAttachment(t *testing.T) {
	svc, _, _, store, _, _ := newTestService()
	store.Objects["chat/99/secret.pdf"] = s3test.Object{ContentType: "application/pdf", Data: []byte("victim bytes")}

	// A storage key smuggled into a text send must not become a
	// readable (or deletable) reference to another conversation's
	// object.
	_, err := svc.SendText(context.Background(), 1, 1, SendReq{
		Content:    "hello",
		Type:       TypeText,
		Attachment: "chat/99/secret.pdf",
	})
	var ae *apperr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeInvalidArgument, ae.Code)
	assert.Contains(t, store.Objects, "chat/99/secret.pdf")
}

func TestSendLinkKeepsRawAttachmentURL(t *testing.T) {
	svc, _, _, _, _, _ := newTestService()

	v, err := svc.SendText(context.Background(), 3, 1, SendReq{
		Type:       TypeLink,
		Attachment: "https://example.com/article",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/article", v.AttachmentURL)
}

func TestSendFileStoresObjectAndClassifies(t *testing.T) {
	svc, _, _, store, _, _ := newTestService()

	up := conversation.Upload{
		Filename:    "photo.png",
		ContentType: "image/png",
		Size:        3,
		Body:        strings.NewReader("abc"),
	}
	v, err := svc.SendFile(context.Background(), 5, 1, "", up, false)
	require.NoError(t, err)
	assert.Equal(t, TypeImage, v.Type)
	assert.Equal(t, "/conversations/5/messages/1/file", v.AttachmentURL)
	assert.Len(t, store.Objects, 1)
}

func TestSendVoiceForcesType(t *testing.T) {
	svc, _, _, _, _, _ := newTestService()

	up := conversation.Upload{
		Filename:    "note.webm",
		ContentType: "video/webm",
		Size:        3,
		Body:        strings.NewReader("abc"),
	}
	v, err := svc.SendFile(context.Background(), 5, 1, "", up, true)
	require.NoError(t, err)
	assert.Equal(t, TypeVoice, v.Type)
}

func TestListReturnsChronologicalOrder(t *testing.T) {
	svc, repo, _, _, _, _ := newTestService()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(&Message{ConversationID: 1, SenderID: 1, Content: "m", Type: TypeText}))
	}

	got, err := svc.List(1, 2, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Less(t, got[0].ID, got[1].ID)
	assert.Less(t, got[1].ID, got[2].ID)
}

func TestListCursorExcludesNewer(t *testing.T) {
	svc, repo, _, _, _, _ := newTestService()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(&Message{ConversationID: 1, SenderID: 1, Content: "m", Type: TypeText}))
	}

	got, err := svc.List(1, 2, 3, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, v := range got {
		assert.Less(t, v.ID, uint(3))
	}
}

func TestAddReactionIdempotentAndFullSet(t *testing.T) {
	svc, repo, _, _, hub, _ := newTestService()
	require.NoError(t, repo.Create(&Message{ConversationID: 1, SenderID: 1, Content: "m", Type: TypeText}))

	set, err := svc.AddReaction(1, 2, "👍")
	require.NoError(t, err)
	require.Len(t, set.Reactions, 1)

	// Same triple again changes nothing.
	set, err = svc.AddReaction(1, 2, "👍")
	require.NoError(t, err)
	assert.Len(t, set.Reactions, 1)

	set, err = svc.AddReaction(1, 3, "🔥")
	require.NoError(t, err)
	assert.Len(t, set.Reactions, 2, "response carries the full reaction set")

	assert.Contains(t, hub.eventTypes(), EventReactionAdded)
}

func TestRemoveReactionBroadcastsRemainingSet(t *testing.T) {
	svc, repo, _, _, hub, _ := newTestService()
	require.NoError(t, repo.Create(&Message{ConversationID: 1, SenderID: 1, Content: "m", Type: TypeText}))

	_, err := svc.AddReaction(1, 2, "👍")
	require.NoError(t, err)
	_, err = svc.AddReaction(1, 3, "👍")
	require.NoError(t, err)

	set, err := svc.RemoveReaction(1, 2, "👍")
	require.NoError(t, err)
	assert.Len(t, set.Reactions, 1)
	assert.Contains(t, hub.eventTypes(), EventReactionRemoved)
}

func TestDeleteRequiresSenderOrAdmin(t *testing.T) {
	svc, repo, convs, _, _, _ := newTestService()
	require.NoError(t, repo.Create(&Message{ConversationID: 1, SenderID: 1, Content: "m", Type: TypeText}))

	convs.member = &conversation.Member{ConversationID: 1, UserID: 2, IsAdmin: false}
	err := svc.Delete(context.Background(), 1, 2)
	var ae *apperr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodePermissionDenied, ae.Code)

	convs.member = &conversation.Member{ConversationID: 1, UserID: 2, IsAdmin: true}
	require.NoError(t, svc.Delete(context.Background(), 1, 2))
	assert.Equal(t, []uint{1}, repo.deleted)
}

func TestDeleteRemovesStoredAttachment(t *testing.T) {
	svc, repo, _, store, hub, _ := newTestService()
	require.NoError(t, repo.Create(&Message{
		ConversationID: 1, SenderID: 1, Type: TypeFile, Attachment: "chat/1/x-doc.pdf",
	}))
	store.Objects["chat/1/x-doc.pdf"] = s3test.Object{ContentType: "application/pdf", Data: []byte("x")}

	require.NoError(t, svc.Delete(context.Background(), 1, 1))
	assert.Empty(t, store.Objects)
	assert.Contains(t, hub.eventTypes(), EventMessageDeleted)
}

func TestServeAttachmentRejectsForeignConversation(t *testing.T) {
	svc, repo, _, _, _, _ := newTestService()
	require.NoError(t, repo.Create(&Message{
		ConversationID: 1, SenderID: 1, Type: TypeFile, Attachment: "chat/1/x",
	}))

	_, _, err := svc.ServeAttachment(context.Background(), 2, 1)
	var ae *apperr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeNotFound, ae.Code)
}

func TestServeAttachmentMissingObject(t *testing.T) {
	svc, repo, _, store, _, _ := newTestService()
	require.NoError(t, repo.Create(&Message{
		ConversationID: 1, SenderID: 1, Type: TypeFile, Attachment: "chat/1/x",
	}))
	store.FetchErr = errors.New("gone")

	_, _, err := svc.ServeAttachment(context.Background(), 1, 1)
	var ae *apperr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeNotFound, ae.Code)
}

