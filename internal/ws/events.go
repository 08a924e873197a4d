package ws

import "time"

// 客户端在 Ready 状态下可发出的命令。
const (
	cmdJoinConversation = "join_conversation"
	cmdSendMessage      = "send_message"
	cmdMarkRead         = "mark_messages_read"
	cmdTypingStart      = "typing_start"
	cmdTypingStop       = "typing_stop"
)

// 服务端推送的事件类型。
const (
	evtNewMessage    = "new_message"
	evtNotification  = "message_notification"
	evtMessageSent   = "message_sent"
	evtMessageError  = "message_error"
	evtMessagesRead  = "messages_read"
	evtTyping        = "user_typing"
	evtStoppedTyping = "user_stopped_typing"
)

// InboundEvent 是统一的入站命令信封，按 Type 取用对应字段。
// ConversationID 携带会话对端的用户 id。
type InboundEvent struct {
	Type           string `json:"type"`
	ConversationID uint   `json:"conversation_id,omitempty"`
	ToUserID       uint   `json:"to_user_id,omitempty"`
	FromUserID     uint   `json:"from_user_id,omitempty"`
	Content        string `json:"content,omitempty"`
	OrderID        *uint  `json:"order_id,omitempty"`
}

// MessageEvent 是广播到会话房间的完整消息记录，附带发送者公开资料。
type MessageEvent struct {
	Type         string    `json:"type"`
	ID           uint      `json:"id"`
	FromUserID   uint      `json:"from_user_id"`
	ToUserID     uint      `json:"to_user_id"`
	SenderName   string    `json:"sender_name"`
	SenderAvatar string    `json:"sender_avatar,omitempty"`
	Content      string    `json:"content"`
	OrderID      *uint     `json:"order_id,omitempty"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
}

// NotificationEvent 是发往接收方个人房间的轻量通知，Content 为截断预览。
type NotificationEvent struct {
	Type       string `json:"type"`
	MessageID  uint   `json:"message_id"`
	FromUserID uint   `json:"from_user_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}

type SentEvent struct {
	Type      string `json:"type"`
	MessageID uint   `json:"message_id"`
}

type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type ReadEvent struct {
	Type   string `json:"type"`
	ReadBy uint   `json:"read_by"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username,omitempty"`
}
