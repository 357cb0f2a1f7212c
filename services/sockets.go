package services

import (
	"errors"
	"log"
	"net/url"

	"github.com/exotech/urchat-api/models"
	socketio "github.com/googollee/go-socket.io"
)

// SocketContext is the per-connection state, set once the connection's token
// has been verified
type SocketContext struct {
	Username string
}

// SocketsService is the realtime broadcaster. Every connected client holds a
// private channel keyed by username, plus one topic room per chat room it has
// open. There is no queue and no replay buffer: a reconnecting client gets a
// fresh chat-list snapshot and per-room history page instead of missed events.
type SocketsService struct {
	Server   *socketio.Server
	Tokens   *TokensService
	Rooms    *RoomsService
	Messages *MessagesService
}

// initialHistoryPageSize is how many messages a room subscription replays on open
const initialHistoryPageSize = 20

func userChannel(username string) string { return "user_" + username }
func roomTopic(chatID string) string     { return "chatroom_" + chatID }

// tokenFromQuery pulls the auth token off a connection URL. Takes the URL by
// value because socketio.Conn.URL returns one.
func tokenFromQuery(u url.URL) string {
	return u.Query().Get("token")
}

// Setup registers all of the socket event handlers. Called once from main
// after the services are wired, because the broadcaster and the domain
// services reference each other.
func (s *SocketsService) Setup() {

	s.Server.OnConnect("/", func(conn socketio.Conn) error {

		// The identity subsystem minted the token; we only verify it and
		// trust the username inside
		username, err := s.Tokens.VerifyToken(tokenFromQuery(conn.URL()))
		if err != nil {
			return err
		}
		conn.SetContext(SocketContext{Username: username})

		// The private channel carries chat-list snapshots and room deletions
		conn.Join(userChannel(username))
		log.Printf("client connected: %s (%s)", username, conn.RemoteAddr())
		return nil
	})

	s.Server.OnDisconnect("/", func(conn socketio.Conn, reason string) {
		conn.LeaveAll()
	})

	// Register all of the event handlers
	s.Server.OnEvent("/", "chats.subscribe", s.OnChatsSubscribe)
	s.Server.OnEvent("/", "chatroom.join", s.OnChatRoomJoin)
	s.Server.OnEvent("/", "chatroom.leave", s.OnChatRoomLeave)
	s.Server.OnEvent("/", "chat.typing", s.OnTyping)
	s.Server.OnEvent("/", "chat.read", s.OnReadReceipt)

}

func connUsername(conn socketio.Conn) (string, error) {
	ctx, ok := conn.Context().(SocketContext)
	if !ok || ctx.Username == "" {
		return "", errors.New("connection is not authenticated")
	}
	return ctx.Username, nil
}

//====================================================================================================
// chats.subscribe event handler
// Called when a client opens (or reopens) its chat list. The full snapshot
// pushed here is the reconnection-recovery mechanism.
//====================================================================================================

func (s *SocketsService) OnChatsSubscribe(conn socketio.Conn) error {

	username, err := connUsername(conn)
	if err != nil {
		return err
	}

	chats, err := s.Rooms.GetUserRooms(username)
	if err != nil {
		return err
	}
	conn.Emit("chats.update", chats)
	return nil
}

//====================================================================================================
// chatroom.join event handler
// Called when a client opens a room. Joins the room topic and replays the
// most recent page of history so the room never opens empty.
//====================================================================================================

type ChatRoomJoinMsg struct {
	ChatID string `json:"chat_id"`
}

func (s *SocketsService) OnChatRoomJoin(conn socketio.Conn, data ChatRoomJoinMsg) error {

	username, err := connUsername(conn)
	if err != nil {
		return err
	}

	// Only current participants may listen in on a room
	messages, err := s.Messages.GetMessagesPaged(data.ChatID, 0, initialHistoryPageSize, username)
	if err != nil {
		return err
	}

	conn.Join(roomTopic(data.ChatID))
	conn.Emit("chat.history", map[string]interface{}{
		"chat_id":  data.ChatID,
		"messages": messageViews(messages),
	})
	return nil
}

//====================================================================================================
// chatroom.leave event handler
//====================================================================================================

type ChatRoomLeaveMsg struct {
	ChatID string `json:"chat_id"`
}

func (s *SocketsService) OnChatRoomLeave(conn socketio.Conn, data ChatRoomLeaveMsg) error {
	conn.Leave(roomTopic(data.ChatID))
	return nil
}

//====================================================================================================
// chat.typing event handler
// Pure relay: typing state is never persisted
//====================================================================================================

type TypingMsg struct {
	ChatID   string `json:"chat_id"`
	IsTyping bool   `json:"is_typing"`
}

func (s *SocketsService) OnTyping(conn socketio.Conn, data TypingMsg) error {

	username, err := connUsername(conn)
	if err != nil {
		return err
	}

	s.Server.BroadcastToRoom("/", roomTopic(data.ChatID), "chat.typing", map[string]interface{}{
		"chat_id":   data.ChatID,
		"username":  username,
		"is_typing": data.IsTyping,
	})
	return nil
}

//====================================================================================================
// chat.read event handler
// Pure relay: read receipts are never persisted
//====================================================================================================

type ReadReceiptMsg struct {
	ChatID    string `json:"chat_id"`
	MessageID uint64 `json:"message_id"`
}

func (s *SocketsService) OnReadReceipt(conn socketio.Conn, data ReadReceiptMsg) error {

	username, err := connUsername(conn)
	if err != nil {
		return err
	}

	s.Server.BroadcastToRoom("/", roomTopic(data.ChatID), "chat.read-receipt", map[string]interface{}{
		"chat_id":    data.ChatID,
		"username":   username,
		"message_id": data.MessageID,
	})
	return nil
}

//====================================================================================================
// RoomEvents implementation
// The domain services publish here after their transactions commit. All of
// it is best-effort: a failure for one recipient is logged and skipped, and
// nothing here can fail the operation that triggered it.
//====================================================================================================

// ChatListChanged recomputes and pushes the chat-list snapshot of each user
func (s *SocketsService) ChatListChanged(usernames ...string) {
	for _, username := range usernames {
		chats, err := s.Rooms.GetUserRooms(username)
		if err != nil {
			log.Printf("error: chat-list snapshot for %s failed: %v", username, err)
			continue
		}
		s.Server.BroadcastToRoom("/", userChannel(username), "chats.update", chats)
	}
}

// MessageCreated announces a new message on its room topic. The send path
// holds the room's publish lock across commit and this call, so the topic
// stream preserves commit order.
func (s *SocketsService) MessageCreated(chatID string, msg *models.Message) {
	s.Server.BroadcastToRoom("/", roomTopic(chatID), "chat.message", messageView(msg))
}

// MessageDeleted announces a permanent message removal on its room topic
func (s *SocketsService) MessageDeleted(chatID string, messageID uint64) {
	s.Server.BroadcastToRoom("/", roomTopic(chatID), "chat.message-deleted", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	})
}

// RoomDeleted announces a cascade deletion on the dead room's topic and on
// the private channel of every former participant, who by now is no longer a
// "current" participant anywhere
func (s *SocketsService) RoomDeleted(chatID string, formerParticipants []string) {
	payload := map[string]interface{}{"chat_id": chatID}
	s.Server.BroadcastToRoom("/", roomTopic(chatID), "chat.deleted", payload)
	for _, username := range formerParticipants {
		s.Server.BroadcastToRoom("/", userChannel(username), "chat.deleted", payload)
	}
}

func messageView(msg *models.Message) map[string]interface{} {
	return map[string]interface{}{
		"message_id": msg.ID,
		"chat_id":    msg.ChatRoomID,
		"sender":     msg.SenderUsername,
		"content":    msg.Content,
		"timestamp":  msg.CreatedDate.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func messageViews(messages []*models.Message) []map[string]interface{} {
	views := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		views = append(views, messageView(msg))
	}
	return views
}

var _ RoomEvents = (*SocketsService)(nil)
