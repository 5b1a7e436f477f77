package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/identity"
	"guild-chat-service/internal/mocks"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/ratelimit"
	"guild-chat-service/internal/repositories"
)

type pipelineFixture struct {
	topo        *mocks.TopologyRepositoryMock
	messages    *mocks.MessageRepositoryMock
	aliases     *mocks.AliasRepositoryMock
	broadcaster *mocks.BroadcasterMock
	pipeline    *Pipeline
}

func newPipelineFixture(t *testing.T, capacity int) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		topo:        new(mocks.TopologyRepositoryMock),
		messages:    new(mocks.MessageRepositoryMock),
		aliases:     new(mocks.AliasRepositoryMock),
		broadcaster: new(mocks.BroadcasterMock),
	}
	limiter := ratelimit.NewLimiter(capacity, 2*time.Second)
	f.pipeline = New(limiter, identity.NewAnonymizer(f.aliases), f.topo, f.messages, f.broadcaster, nil)
	return f
}

func existingAlias(userID int64, aliasID string) models.AnonymousAlias {
	return models.AnonymousAlias{AliasID: aliasID, UserID: userID}
}

func TestSubmitPersistsAndBroadcasts(t *testing.T) {
	f := newPipelineFixture(t, 100)
	channel := models.Channel{ID: 7, IsPrivate: false}

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(true, nil)
	f.aliases.On("GetAliasByUser", mock.Anything, int64(42)).Return(existingAlias(42, "anon_a1b2c3"), nil)
	f.messages.On("CreateMessage", mock.Anything, repositories.CreateMessageParams{
		ChannelID:  7,
		AliasID:    "anon_a1b2c3",
		SenderType: models.SenderUser,
		Text:       "hello",
	}).Return(models.Message{ID: 900, ChannelID: 7, AliasID: "anon_a1b2c3", SenderType: models.SenderUser, Text: "hello"}, nil)
	f.broadcaster.On("BroadcastEvent", int64(7), mock.MatchedBy(func(ev models.ChatEvent) bool {
		return ev.Type == models.EventReceiveMessage && ev.Message != nil && !ev.Message.Self
	}), "conn-1").Return()

	view, err := f.pipeline.Submit(context.Background(), SubmitRequest{
		UserID: 42, Username: "mara", ChannelID: 7, Content: "hello", ConnID: "conn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(900), view.MessageID)
	assert.True(t, view.Self)
	require.NotNil(t, view.SenderID)
	assert.Equal(t, int64(42), *view.SenderID)
	assert.Equal(t, "mara", view.Profile.Name)
	f.broadcaster.AssertExpectations(t)
	f.messages.AssertExpectations(t)
}

func TestSubmitAnonymousScrubsIdentity(t *testing.T) {
	f := newPipelineFixture(t, 100)
	channel := models.Channel{ID: 7}

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(true, nil)
	f.aliases.On("GetAliasByUser", mock.Anything, int64(42)).Return(existingAlias(42, "anon_a1b2c3"), nil)
	f.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(p repositories.CreateMessageParams) bool {
		return p.SenderType == models.SenderAnon && p.AliasID == "anon_a1b2c3"
	})).Return(models.Message{ID: 901, ChannelID: 7, AliasID: "anon_a1b2c3", SenderType: models.SenderAnon, Text: "psst"}, nil)
	f.broadcaster.On("BroadcastEvent", int64(7), mock.MatchedBy(func(ev models.ChatEvent) bool {
		return ev.Message != nil && ev.Message.SenderID == nil && ev.Message.Profile.Name == models.AnonymousDisplayName
	}), "conn-1").Return()

	view, err := f.pipeline.Submit(context.Background(), SubmitRequest{
		UserID: 42, Username: "mara", ChannelID: 7, Content: "psst", IsAnon: true, ConnID: "conn-1",
	})
	require.NoError(t, err)
	assert.Nil(t, view.SenderID)
	assert.Equal(t, models.AnonymousDisplayName, view.Profile.Name)
	assert.Equal(t, "anon_a1b2c3", view.AliasID)
	f.broadcaster.AssertExpectations(t)
}

func TestSubmitRateLimited(t *testing.T) {
	f := newPipelineFixture(t, 1)
	channel := models.Channel{ID: 7}

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(true, nil)
	f.aliases.On("GetAliasByUser", mock.Anything, int64(42)).Return(existingAlias(42, "anon_a1b2c3"), nil)
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: 902, ChannelID: 7, AliasID: "anon_a1b2c3", SenderType: models.SenderUser, Text: "one"}, nil)
	f.broadcaster.On("BroadcastEvent", mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := f.pipeline.Submit(context.Background(), SubmitRequest{UserID: 42, ChannelID: 7, Content: "one"})
	require.NoError(t, err)

	_, err = f.pipeline.Submit(context.Background(), SubmitRequest{UserID: 42, ChannelID: 7, Content: "two"})
	require.ErrorIs(t, err, ErrRateLimited)
	f.messages.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestSubmitRejectsEmptyAndOversized(t *testing.T) {
	f := newPipelineFixture(t, 100)

	_, err := f.pipeline.Submit(context.Background(), SubmitRequest{UserID: 42, ChannelID: 7})
	require.ErrorIs(t, err, ErrInvalidContent)

	long := make([]rune, MaxContentRunes+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.pipeline.Submit(context.Background(), SubmitRequest{UserID: 42, ChannelID: 7, Content: string(long)})
	require.ErrorIs(t, err, ErrInvalidContent)

	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSubmitAttachmentOnlyAllowed(t *testing.T) {
	f := newPipelineFixture(t, 100)
	channel := models.Channel{ID: 7}
	url := "https://cdn.example.com/cat.png"

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(true, nil)
	f.aliases.On("GetAliasByUser", mock.Anything, int64(42)).Return(existingAlias(42, "anon_a1b2c3"), nil)
	f.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(p repositories.CreateMessageParams) bool {
		return p.Text == "" && p.FileURL != nil && *p.FileURL == url
	})).Return(models.Message{ID: 903, ChannelID: 7, AliasID: "anon_a1b2c3", SenderType: models.SenderUser, FileURL: &url}, nil)
	f.broadcaster.On("BroadcastEvent", mock.Anything, mock.Anything, mock.Anything).Return()

	view, err := f.pipeline.Submit(context.Background(), SubmitRequest{
		UserID: 42, ChannelID: 7, Attachment: &models.Attachment{URL: url, Name: "cat.png", Kind: "image"},
	})
	require.NoError(t, err)
	require.NotNil(t, view.FileURL)
	assert.Equal(t, url, *view.FileURL)
}

func TestSubmitNonMemberRejected(t *testing.T) {
	f := newPipelineFixture(t, 100)
	channel := models.Channel{ID: 7, IsPrivate: true}

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(false, nil)

	_, err := f.pipeline.Submit(context.Background(), SubmitRequest{UserID: 42, ChannelID: 7, Content: "hi"})
	require.ErrorIs(t, err, ErrUnauthorized)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSubmitReplyMustMatchChannel(t *testing.T) {
	f := newPipelineFixture(t, 100)
	channel := models.Channel{ID: 7}
	replyTo := int64(555)

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(true, nil)
	f.messages.On("GetMessage", mock.Anything, replyTo).
		Return(models.Message{ID: replyTo, ChannelID: 8}, nil)

	_, err := f.pipeline.Submit(context.Background(), SubmitRequest{
		UserID: 42, ChannelID: 7, Content: "re", ReplyToID: &replyTo,
	})
	require.ErrorIs(t, err, ErrInvalidContent)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSubmitPersistenceFailureNoBroadcast(t *testing.T) {
	f := newPipelineFixture(t, 100)
	channel := models.Channel{ID: 7}

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(true, nil)
	f.aliases.On("GetAliasByUser", mock.Anything, int64(42)).Return(existingAlias(42, "anon_a1b2c3"), nil)
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{}, errors.New("connection refused"))

	_, err := f.pipeline.Submit(context.Background(), SubmitRequest{UserID: 42, ChannelID: 7, Content: "hi"})
	require.ErrorIs(t, err, ErrPersistence)
	f.broadcaster.AssertNotCalled(t, "BroadcastEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditOwnerOnly(t *testing.T) {
	f := newPipelineFixture(t, 100)
	msg := models.Message{ID: 900, ChannelID: 7, AliasID: "anon_a1b2c3"}

	f.messages.On("GetMessage", mock.Anything, int64(900)).Return(msg, nil)
	f.aliases.On("GetAliasOwner", mock.Anything, "anon_a1b2c3").Return(int64(42), nil)

	err := f.pipeline.Edit(context.Background(), 99, 900, "hijacked")
	require.ErrorIs(t, err, ErrUnauthorized)
	f.messages.AssertNotCalled(t, "EditMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditBroadcastsUpdate(t *testing.T) {
	f := newPipelineFixture(t, 100)
	msg := models.Message{ID: 900, ChannelID: 7, AliasID: "anon_a1b2c3"}

	f.messages.On("GetMessage", mock.Anything, int64(900)).Return(msg, nil)
	f.aliases.On("GetAliasOwner", mock.Anything, "anon_a1b2c3").Return(int64(42), nil)
	f.messages.On("EditMessage", mock.Anything, int64(900), "fixed").Return(nil)
	f.broadcaster.On("BroadcastEvent", int64(7), mock.MatchedBy(func(ev models.ChatEvent) bool {
		return ev.Type == models.EventMessageUpdated && ev.MessageID == 900 && ev.NewContent == "fixed"
	}), "").Return()

	require.NoError(t, f.pipeline.Edit(context.Background(), 42, 900, "fixed"))
	f.broadcaster.AssertExpectations(t)
}

func TestDeleteByChannelAdmin(t *testing.T) {
	f := newPipelineFixture(t, 100)
	msg := models.Message{ID: 900, ChannelID: 7, AliasID: "anon_a1b2c3"}
	channel := models.Channel{ID: 7}

	f.messages.On("GetMessage", mock.Anything, int64(900)).Return(msg, nil)
	f.aliases.On("GetAliasOwner", mock.Anything, "anon_a1b2c3").Return(int64(42), nil)
	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelAdmin", mock.Anything, channel, int64(99)).Return(true, nil)
	f.messages.On("SoftDeleteMessage", mock.Anything, int64(900)).Return(nil)
	f.broadcaster.On("BroadcastEvent", int64(7), mock.MatchedBy(func(ev models.ChatEvent) bool {
		return ev.Type == models.EventMessageDeleted && ev.MessageID == 900
	}), "").Return()

	require.NoError(t, f.pipeline.Delete(context.Background(), 99, 900))
	f.messages.AssertExpectations(t)
}

func TestDeleteByStrangerRejected(t *testing.T) {
	f := newPipelineFixture(t, 100)
	msg := models.Message{ID: 900, ChannelID: 7, AliasID: "anon_a1b2c3"}
	channel := models.Channel{ID: 7}

	f.messages.On("GetMessage", mock.Anything, int64(900)).Return(msg, nil)
	f.aliases.On("GetAliasOwner", mock.Anything, "anon_a1b2c3").Return(int64(42), nil)
	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelAdmin", mock.Anything, channel, int64(99)).Return(false, nil)

	err := f.pipeline.Delete(context.Background(), 99, 900)
	require.ErrorIs(t, err, ErrUnauthorized)
	f.messages.AssertNotCalled(t, "SoftDeleteMessage", mock.Anything, mock.Anything)
}

func TestHistoryShapesViews(t *testing.T) {
	f := newPipelineFixture(t, 100)
	channel := models.Channel{ID: 7}
	viewer := int64(42)
	name := "mara"

	rows := []models.HistoryMessage{
		{
			Message:  models.Message{ID: 1, ChannelID: 7, AliasID: "anon_a1b2c3", SenderType: models.SenderUser, Text: "hi"},
			OwnerID:  42,
			Username: &name,
		},
		{
			Message: models.Message{ID: 2, ChannelID: 7, AliasID: "anon_d4e5f6", SenderType: models.SenderAnon, Text: "secret"},
			OwnerID: 99,
		},
	}
	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, viewer).Return(true, nil)
	f.messages.On("ListChannelMessages", mock.Anything, int64(7), defaultHistoryLimit).Return(rows, nil)

	views, err := f.pipeline.History(context.Background(), 7, viewer)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.True(t, views[0].Self)
	assert.Equal(t, "mara", views[0].Profile.Name)
	require.NotNil(t, views[0].SenderID)

	assert.False(t, views[1].Self)
	assert.Nil(t, views[1].SenderID)
	assert.Equal(t, models.AnonymousDisplayName, views[1].Profile.Name)
}

func TestHistoryNonMemberRejected(t *testing.T) {
	f := newPipelineFixture(t, 100)
	channel := models.Channel{ID: 7, IsPrivate: true}

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(false, nil)

	_, err := f.pipeline.History(context.Background(), 7, 42)
	require.ErrorIs(t, err, ErrUnauthorized)
	f.messages.AssertNotCalled(t, "ListChannelMessages", mock.Anything, mock.Anything, mock.Anything)
}
