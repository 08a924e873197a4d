package service

import (
	"time"

	"khadamat/internal/models"

	"gorm.io/gorm"
)

// MessageService 封装私信的持久化逻辑，同时实现 ws.MessageStore。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// CreateMessage 追加一条私信，is_read 初始为 false。
func (s *MessageService) CreateMessage(fromUserID, toUserID uint, content string, orderID *uint) (*models.Message, error) {
	msg := models.Message{FromUserID: fromUserID, ToUserID: toUserID, Content: content, OrderID: orderID}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkConversationRead 批量把 fromUserID 发给 toUserID 的未读消息置为已读。
// is_read 只会 false→true，重复调用更新零行。
func (s *MessageService) MarkConversationRead(fromUserID, toUserID uint) (int64, error) {
	res := s.db.Model(&models.Message{}).
		Where("from_user_id = ? AND to_user_id = ? AND is_read = ?", fromUserID, toUserID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// ConversationExists 判断两个用户之间是否存在任意方向的历史消息，
// 作为加入会话房间的粗粒度授权依据。
func (s *MessageService) ConversationExists(a, b uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Message{}).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)", a, b, b, a).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MessageDTO 是对外输出的消息数据。
type MessageDTO struct {
	Type       string    `json:"type"`
	ID         uint      `json:"id"`
	FromUserID uint      `json:"from_user_id"`
	ToUserID   uint      `json:"to_user_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	OrderID    *uint     `json:"order_id,omitempty"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListConversation 分页查询与某个对端的双向消息，按 id 升序返回。
// 这是连接中断后客户端补拉历史的恢复路径。
func (s *MessageService) ListConversation(selfID, peerID uint, limit int, beforeID uint) ([]MessageDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.db.Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
		selfID, peerID, peerID, selfID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []models.Message
	if err := q.Order("id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	names, err := s.resolveNames(msgs)
	if err != nil {
		return nil, err
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			Type:       "message",
			ID:         m.ID,
			FromUserID: m.FromUserID,
			ToUserID:   m.ToUserID,
			SenderName: names[m.FromUserID],
			Content:    m.Content,
			OrderID:    m.OrderID,
			IsRead:     m.IsRead,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out, nil
}

// resolveNames 批量获取消息发送者的展示名。
func (s *MessageService) resolveNames(msgs []models.Message) (map[uint]string, error) {
	seen := make(map[uint]struct{}, len(msgs))
	userIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.FromUserID]; ok {
			continue
		}
		seen[m.FromUserID] = struct{}{}
		userIDs = append(userIDs, m.FromUserID)
	}

	names := make(map[uint]string, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := s.db.Select("id", "username", "name").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.Name != "" {
				names[u.ID] = u.Name
			} else {
				names[u.ID] = u.Username
			}
		}
	}
	return names, nil
}
