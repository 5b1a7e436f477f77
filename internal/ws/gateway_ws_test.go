package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/auth"
	"guild-chat-service/internal/gateway"
	"guild-chat-service/internal/identity"
	"guild-chat-service/internal/mocks"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/pipeline"
	"guild-chat-service/internal/ratelimit"
)

const testSecret = "gateway-test-secret"

type gatewayFixture struct {
	topo     *mocks.TopologyRepositoryMock
	messages *mocks.MessageRepositoryMock
	aliases  *mocks.AliasRepositoryMock
	profiles *mocks.ProfileRepositoryMock
	registry *gateway.Registry
	hub      *Hub
	client   *websocket.Conn
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &gatewayFixture{
		topo:     new(mocks.TopologyRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		aliases:  new(mocks.AliasRepositoryMock),
		profiles: new(mocks.ProfileRepositoryMock),
		registry: gateway.NewRegistry(),
		hub:      NewHub(),
	}
	f.profiles.On("UpsertProfile", mock.Anything, mock.Anything).Return(nil)
	f.profiles.On("UpsertPlatformRole", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	pipe := pipeline.New(ratelimit.NewLimiter(100, time.Second), identity.NewAnonymizer(f.aliases),
		f.topo, f.messages, f.hub, nil)
	handler := NewGatewayHandler(f.hub, f.registry, pipe, f.topo, f.profiles, testSecret)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: 42, Username: "mara"}, time.Minute)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { client.Close() })
	f.client = client
	return f
}

func (f *gatewayFixture) read(t *testing.T) models.ChatEvent {
	t.Helper()
	var event models.ChatEvent
	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, f.client.ReadJSON(&event))
	return event
}

func TestGatewayRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewGatewayHandler(NewHub(), gateway.NewRegistry(), nil, nil, nil, testSecret)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)
}

func TestGatewayJoinChannelDeliversHistory(t *testing.T) {
	f := newGatewayFixture(t)
	channel := models.Channel{ID: 7}

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(true, nil)
	f.messages.On("ListChannelMessages", mock.Anything, int64(7), mock.Anything).
		Return([]models.HistoryMessage{{
			Message: models.Message{ID: 1, ChannelID: 7, AliasID: "anon_x1y2z3", SenderType: models.SenderUser, Text: "old"},
			OwnerID: 42,
		}}, nil)

	require.NoError(t, f.client.WriteJSON(models.ClientEvent{Type: models.EventJoinChannel, ChannelID: 7}))

	event := f.read(t)
	assert.Equal(t, models.EventMessageHistory, event.Type)
	require.Len(t, event.Messages, 1)
	assert.True(t, event.Messages[0].Self)
}

func TestGatewaySendMessageAcknowledged(t *testing.T) {
	f := newGatewayFixture(t)
	channel := models.Channel{ID: 7}

	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(true, nil)
	f.aliases.On("GetAliasByUser", mock.Anything, int64(42)).
		Return(models.AnonymousAlias{AliasID: "anon_x1y2z3", UserID: 42}, nil)
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: 900, ChannelID: 7, AliasID: "anon_x1y2z3", SenderType: models.SenderUser, Text: "hello"}, nil)

	require.NoError(t, f.client.WriteJSON(models.ClientEvent{
		Type: models.EventSendMessage, ChannelID: 7, Content: "hello",
	}))

	event := f.read(t)
	assert.Equal(t, models.EventReceiveMessage, event.Type)
	require.NotNil(t, event.Message)
	assert.True(t, event.Message.Self)
	assert.Equal(t, int64(900), event.Message.MessageID)
}

func TestGatewayUnauthorizedSendKeepsConnection(t *testing.T) {
	f := newGatewayFixture(t)
	private := models.Channel{ID: 8, IsPrivate: true}
	open := models.Channel{ID: 7}

	f.topo.On("GetChannel", mock.Anything, int64(8)).Return(private, nil)
	f.topo.On("IsChannelMember", mock.Anything, private, int64(42)).Return(false, nil)
	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(open, nil)
	f.topo.On("IsChannelMember", mock.Anything, open, int64(42)).Return(true, nil)
	f.messages.On("ListChannelMessages", mock.Anything, int64(7), mock.Anything).
		Return([]models.HistoryMessage{}, nil)

	require.NoError(t, f.client.WriteJSON(models.ClientEvent{
		Type: models.EventSendMessage, ChannelID: 8, Content: "sneak",
	}))

	var errEvent models.ErrorEvent
	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, f.client.ReadJSON(&errEvent))
	assert.Equal(t, models.EventError, errEvent.Type)

	// The connection survives the failed operation.
	require.NoError(t, f.client.WriteJSON(models.ClientEvent{Type: models.EventJoinChannel, ChannelID: 7}))
	event := f.read(t)
	assert.Equal(t, models.EventMessageHistory, event.Type)
}

func TestGatewayHeartbeatRefreshesSession(t *testing.T) {
	f := newGatewayFixture(t)

	require.Eventually(t, func() bool {
		return len(f.registry.OnlineUsers()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.client.WriteJSON(models.ClientEvent{Type: models.EventHeartbeat}))
	assert.Eventually(t, func() bool {
		users := f.registry.OnlineUsers()
		return len(users) == 1 && users[0] == 42
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayTypingFanOut(t *testing.T) {
	f := newGatewayFixture(t)

	channel := models.Channel{ID: 7}
	f.topo.On("GetChannel", mock.Anything, int64(7)).Return(channel, nil)
	f.topo.On("IsChannelMember", mock.Anything, channel, int64(42)).Return(true, nil)
	f.messages.On("ListChannelMessages", mock.Anything, int64(7), mock.Anything).
		Return([]models.HistoryMessage{}, nil)
	f.aliases.On("GetAliasByUser", mock.Anything, int64(42)).
		Return(models.AnonymousAlias{AliasID: "anon_x1y2z3", UserID: 42}, nil)
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: 901, ChannelID: 7, AliasID: "anon_x1y2z3", SenderType: models.SenderUser, Text: "still here"}, nil)

	require.NoError(t, f.client.WriteJSON(models.ClientEvent{Type: models.EventJoinChannel, ChannelID: 7}))
	_ = f.read(t) // history

	// Typing from a connection outside the room is dropped silently, and
	// typing fan-out excludes the sender, so neither write produces a
	// frame here. The follow-up send proves the connection is healthy.
	require.NoError(t, f.client.WriteJSON(models.ClientEvent{Type: models.EventTyping, ChannelID: 99}))
	require.NoError(t, f.client.WriteJSON(models.ClientEvent{Type: models.EventTyping, ChannelID: 7, IsAnon: true}))
	require.NoError(t, f.client.WriteJSON(models.ClientEvent{Type: models.EventSendMessage, ChannelID: 7, Content: "still here"}))

	event := f.read(t)
	assert.Equal(t, models.EventReceiveMessage, event.Type)
}
