package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"membership-service/internal/models"
	"membership-service/internal/observability"
)

// TokenVerifier resolves a bearer token to the caller's identity.
type TokenVerifier interface {
	Verify(token string) (models.User, error)
}

// MemberChecker reports whether a user holds an active membership.
type MemberChecker interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// GroupWebSocketHandler streams group events to connected members.
type GroupWebSocketHandler struct {
	hub      *Hub
	members  MemberChecker
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

// NewGroupWebSocketHandler constructs a GroupWebSocketHandler.
func NewGroupWebSocketHandler(hub *Hub, members MemberChecker, verifier TokenVerifier) *GroupWebSocketHandler {
	return &GroupWebSocketHandler{
		hub:      hub,
		members:  members,
		verifier: verifier,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Handle authenticates the caller, checks membership and registers the connection.
func (h *GroupWebSocketHandler) Handle(c *gin.Context) {
	groupID := c.Param("group_id")

	ctx, span := otel.Tracer("membership-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	user, err := h.verifier.Verify(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.members.IsMember(ctx, groupID, user.ID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for group"})
		return
	}

	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	requestID := observability.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = c.GetHeader("X-Request-ID")
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddGroupClient(groupID, wsConn, info)

	observability.IncWSActive("group")
	h.publish(context.WithoutCancel(ctx), groupID, info, "ws_connect", "")

	go h.readLoop(context.WithoutCancel(ctx), groupID, wsConn, info)
}

func (h *GroupWebSocketHandler) readLoop(ctx context.Context, groupID string, wsConn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveGroupClient(groupID, wsConn)
		observability.DecWSActive("group")
		h.publish(ctx, groupID, info, "ws_disconnect", closeReason)
		wsConn.Close()
	}()
	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.publish(ctx, groupID, info, "ws_error", closeReason)
			}
			return
		}
	}
}

func (h *GroupWebSocketHandler) publish(ctx context.Context, groupID string, info ConnInfo, event, reason string) {
	observability.IncWSEvent("group", event)
	if err := observability.PublishEvent(ctx, routingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   info.payload(groupID, event, reason),
	}, observability.BuildHeaders(info.RequestID, info.TraceID)); err != nil {
		h.hub.log.Debug("publish ws event failed",
			zap.String("group_id", groupID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// bearerToken reads the Authorization header, falling back to ?token= for
// browsers that cannot set headers on a websocket handshake.
func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return ""
		}
		return token
	}
	return c.Query("token")
}
