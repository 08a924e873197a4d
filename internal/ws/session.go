package ws

import (
	"encoding/json"
	"unicode/utf8"

	"khadamat/internal/metrics"

	"github.com/rs/zerolog/log"
)

const previewChars = 50

func (c *Client) dispatch(ev InboundEvent) {
	switch ev.Type {
	case cmdJoinConversation:
		c.handleJoinConversation(ev.ConversationID)
	case cmdSendMessage:
		c.handleSendMessage(ev.ToUserID, ev.Content, ev.OrderID)
	case cmdMarkRead:
		c.handleMarkRead(ev.FromUserID)
	case cmdTypingStart:
		c.handleTyping(ev.ConversationID, true)
	case cmdTypingStop:
		c.handleTyping(ev.ConversationID, false)
	default:
		log.Debug().Str("conn_id", c.id).Str("type", ev.Type).Msg("unknown command")
	}
}

// emitSelf 只回发给本连接，连接已断开或发送缓冲满则丢弃。
func (c *Client) emitSelf(event interface{}) {
	b, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("conn_id", c.id).Msg("marshal event")
		return
	}
	c.trySend(b)
}

// fail 向发送方回一条 message_error，错误永远不会波及其他连接。
func (c *Client) fail(msg string) {
	metrics.MessageErrorsTotal.Inc()
	c.emitSelf(ErrorEvent{Type: evtMessageError, Error: msg})
}

func (c *Client) handleJoinConversation(peerID uint) {
	if peerID == 0 || peerID == c.userID {
		log.Debug().Str("conn_id", c.id).Uint("peer_id", peerID).Msg("join_conversation: invalid peer")
		return
	}
	// 校验失败静默拒绝：不加入、不断开、只记日志
	if !c.hub.JoinConversation(c, peerID) {
		log.Warn().Uint("user_id", c.userID).Uint("peer_id", peerID).Msg("join_conversation denied")
	}
}

func (c *Client) handleSendMessage(toUserID uint, content string, orderID *uint) {
	if toUserID == 0 {
		c.fail("invalid recipient")
		return
	}
	if toUserID == c.userID {
		c.fail("cannot send a message to yourself")
		return
	}
	if content == "" {
		c.fail("message content is empty")
		return
	}
	if utf8.RuneCountInString(content) > c.maxChars {
		c.fail("message content is too long")
		return
	}

	msg, err := c.store.CreateMessage(c.userID, toUserID, content, orderID)
	if err != nil {
		log.Error().Err(err).Uint("from", c.userID).Uint("to", toUserID).Msg("persist message")
		c.fail("failed to send message")
		return
	}

	c.hub.Emit(ConversationRoom(c.userID, toUserID), MessageEvent{
		Type:         evtNewMessage,
		ID:           msg.ID,
		FromUserID:   msg.FromUserID,
		ToUserID:     msg.ToUserID,
		SenderName:   c.senderName(),
		SenderAvatar: c.avatar,
		Content:      msg.Content,
		OrderID:      msg.OrderID,
		IsRead:       msg.IsRead,
		CreatedAt:    msg.CreatedAt,
	})
	c.hub.Emit(PersonalRoom(toUserID), NotificationEvent{
		Type:       evtNotification,
		MessageID:  msg.ID,
		FromUserID: msg.FromUserID,
		SenderName: c.senderName(),
		Content:    preview(msg.Content),
	})
	c.emitSelf(SentEvent{Type: evtMessageSent, MessageID: msg.ID})
	metrics.MessagesSentTotal.Inc()
}

func (c *Client) handleMarkRead(fromUserID uint) {
	if fromUserID == 0 || fromUserID == c.userID {
		return
	}
	if _, err := c.store.MarkConversationRead(fromUserID, c.userID); err != nil {
		log.Error().Err(err).Uint("from", fromUserID).Uint("reader", c.userID).Msg("mark messages read")
		c.fail("failed to mark messages read")
		return
	}
	// 没有可更新的行也照常广播，调用方按幂等消费
	c.hub.Emit(ConversationRoom(c.userID, fromUserID), ReadEvent{Type: evtMessagesRead, ReadBy: c.userID})
}

func (c *Client) handleTyping(peerID uint, started bool) {
	if peerID == 0 || peerID == c.userID {
		return
	}
	ev := TypingEvent{Type: evtStoppedTyping, UserID: c.userID}
	if started {
		ev.Type = evtTyping
		ev.Username = c.username
	}
	c.hub.EmitExcept(ConversationRoom(c.userID, peerID), ev, c)
}

// preview 生成通知用的消息预览，超过 50 个字符截断并追加省略号。
func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewChars {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewChars]) + "..."
}
