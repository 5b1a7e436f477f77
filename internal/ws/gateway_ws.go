package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"guild-chat-service/internal/auth"
	"guild-chat-service/internal/gateway"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/observability"
	"guild-chat-service/internal/pipeline"
	"guild-chat-service/internal/repositories"
)

// GatewayHandler owns the single websocket endpoint. One connection serves
// every channel the user interacts with; events carry the channel id.
type GatewayHandler struct {
	hub       *Hub
	registry  *gateway.Registry
	pipeline  *pipeline.Pipeline
	topology  repositories.TopologyRepository
	profiles  repositories.ProfileRepository
	jwtSecret string
}

// NewGatewayHandler constructs a GatewayHandler.
func NewGatewayHandler(hub *Hub, registry *gateway.Registry, pipe *pipeline.Pipeline,
	topology repositories.TopologyRepository, profiles repositories.ProfileRepository, jwtSecret string) *GatewayHandler {
	return &GatewayHandler{
		hub:       hub,
		registry:  registry,
		pipeline:  pipe,
		topology:  topology,
		profiles:  profiles,
		jwtSecret: jwtSecret,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades and runs the connection's read loop. A
// failed operation answers with an error event; the connection survives it.
func (h *GatewayHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("guild-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	claims, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      claims.UserID,
		Username:    claims.Username,
		AvatarURL:   claims.AvatarURL,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	info.SessionID = h.registry.Register(info.ConnID, info.UserID)
	h.hub.RegisterConn(conn, info)
	h.refreshIdentityMirror(ctx, claims)

	observability.IncWSActive("gateway")
	observability.IncWSEvent("gateway", "ws_connect")
	h.publishLifecycle(ctx, info, "ws_connect", 0, "")

	go h.readLoop(ctx, conn, info)
}

func (h *GatewayHandler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.UnregisterConn(conn)
		h.registry.Deregister(info.ConnID)
		observability.DecWSActive("gateway")
		observability.IncWSEvent("gateway", "ws_disconnect")
		h.publishLifecycle(ctx, info, "ws_disconnect", time.Since(info.ConnectedAt).Milliseconds(), closeReason)
		conn.Close()
	}()

	for {
		var event models.ClientEvent
		if err := conn.ReadJSON(&event); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("gateway", "ws_error")
			}
			return
		}
		h.dispatch(ctx, conn, info, event)
	}
}

func (h *GatewayHandler) dispatch(ctx context.Context, conn *websocket.Conn, info ConnInfo, event models.ClientEvent) {
	observability.IncWSEvent("gateway", event.Type)

	switch event.Type {
	case models.EventHeartbeat:
		h.registry.Heartbeat(info.ConnID)
	case models.EventJoinChannel:
		h.handleJoin(ctx, conn, info, event.ChannelID)
	case models.EventSendMessage:
		h.handleSend(ctx, conn, info, event)
	case models.EventEditMessage:
		if err := h.pipeline.Edit(ctx, info.UserID, event.MessageID, event.NewContent); err != nil {
			h.sendError(conn, err)
		}
	case models.EventDeleteMessage:
		if err := h.pipeline.Delete(ctx, info.UserID, event.MessageID); err != nil {
			h.sendError(conn, err)
		}
	case models.EventTyping, models.EventStopTyping:
		h.handleTyping(conn, info, event)
	default:
		h.sendError(conn, fmt.Errorf("unknown event type %q", event.Type))
	}
}

func (h *GatewayHandler) handleJoin(ctx context.Context, conn *websocket.Conn, info ConnInfo, channelID int64) {
	history, err := h.pipeline.History(ctx, channelID, info.UserID)
	if err != nil {
		h.sendError(conn, err)
		return
	}

	h.hub.JoinRoom(channelID, conn)
	_ = h.hub.SendTo(conn, models.ChatEvent{
		Type:      models.EventMessageHistory,
		ChannelID: channelID,
		Messages:  history,
	})
}

func (h *GatewayHandler) handleSend(ctx context.Context, conn *websocket.Conn, info ConnInfo, event models.ClientEvent) {
	view, err := h.pipeline.Submit(ctx, pipeline.SubmitRequest{
		UserID:     info.UserID,
		Username:   info.Username,
		AvatarURL:  info.AvatarURL,
		ChannelID:  event.ChannelID,
		Content:    event.Content,
		Attachment: event.Attachment,
		ReplyToID:  event.ReplyToID,
		IsAnon:     event.IsAnon,
		ConnID:     info.ConnID,
	})
	if err != nil {
		h.sendError(conn, err)
		return
	}

	// The sender gets the acknowledged copy directly; everyone else got
	// it through the room broadcast.
	_ = h.hub.SendTo(conn, models.ChatEvent{
		Type:      models.EventReceiveMessage,
		ChannelID: event.ChannelID,
		Message:   &view,
	})
}

func (h *GatewayHandler) handleTyping(conn *websocket.Conn, info ConnInfo, event models.ClientEvent) {
	if !h.hub.InRoom(event.ChannelID, conn) {
		return
	}
	name := info.Username
	if event.IsAnon {
		name = models.AnonymousDisplayName
	}
	h.hub.BroadcastEvent(event.ChannelID, models.ChatEvent{
		Type:      event.Type,
		ChannelID: event.ChannelID,
		User:      name,
	}, info.ConnID)
}

// refreshIdentityMirror keeps local display data current with the token's
// claims so history joins render real names without a network hop.
func (h *GatewayHandler) refreshIdentityMirror(ctx context.Context, claims *auth.Claims) {
	if h.profiles == nil {
		return
	}
	if err := h.profiles.UpsertProfile(ctx, models.UserProfile{
		UserID:    claims.UserID,
		Username:  claims.Username,
		AvatarURL: claims.AvatarURL,
	}); err != nil {
		return
	}
	if claims.Role != "" {
		_ = h.profiles.UpsertPlatformRole(ctx, claims.UserID, claims.Role)
	}
}

func (h *GatewayHandler) sendError(conn *websocket.Conn, err error) {
	msg := "internal error"
	switch {
	case errors.Is(err, pipeline.ErrRateLimited):
		msg = "rate limit exceeded, slow down"
	case errors.Is(err, pipeline.ErrInvalidContent):
		msg = err.Error()
	case errors.Is(err, pipeline.ErrUnauthorized):
		msg = "not authorized for channel"
	case errors.Is(err, repositories.ErrChannelNotFound):
		msg = "channel not found"
	case errors.Is(err, repositories.ErrMessageNotFound):
		msg = "message not found"
	case err != nil && strings.HasPrefix(err.Error(), "unknown event type"):
		msg = err.Error()
	}
	_ = h.hub.SendTo(conn, models.ErrorEvent{Type: models.EventError, Message: msg})
}

func (h *GatewayHandler) publishLifecycle(ctx context.Context, info ConnInfo, name string, durationMS int64, reason string) {
	_ = observability.PublishEvent(ctx, wsEventsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     info.ConnID,
				"session_id":  info.SessionID,
				"duration_ms": durationMS,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": info.UserID,
				"ip":      info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func (h *GatewayHandler) validateToken(header string) (*auth.Claims, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return auth.ParseToken(h.jwtSecret, parts[1])
	}
	return nil, fmt.Errorf("invalid token")
}
