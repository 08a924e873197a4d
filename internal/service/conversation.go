package service

import (
	"time"

	"khadamat/internal/models"
	"khadamat/internal/ws"

	"gorm.io/gorm"
)

// ConversationService 汇总某个用户的全部会话对端，供会话列表接口使用。
type ConversationService struct {
	db  *gorm.DB
	hub *ws.Hub
}

func NewConversationService(db *gorm.DB, hub *ws.Hub) *ConversationService {
	return &ConversationService{db: db, hub: hub}
}

// PartnerDTO 是会话列表里的一个对端条目。
type PartnerDTO struct {
	UserID        uint       `json:"user_id"`
	Username      string     `json:"username"`
	Name          string     `json:"name,omitempty"`
	Avatar        string     `json:"avatar,omitempty"`
	Online        bool       `json:"online"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	Unread        int64      `json:"unread"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt time.Time  `json:"last_message_at"`
	LastFromMe    bool       `json:"last_from_me"`
}

const recentScanLimit = 500

// ListPartners 返回与该用户有过消息往来的对端，按最近一条消息倒序。
// 每个对端附带未读数、最近消息摘要和实时在线标记。
func (s *ConversationService) ListPartners(selfID uint) ([]PartnerDTO, error) {
	var msgs []models.Message
	err := s.db.Where("from_user_id = ? OR to_user_id = ?", selfID, selfID).
		Order("id desc").Limit(recentScanLimit).Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	// 消息按 id 倒序，首次遇到的对端即为其最近一条消息
	order := make([]uint, 0)
	latest := make(map[uint]models.Message)
	for _, m := range msgs {
		peer := m.FromUserID
		if peer == selfID {
			peer = m.ToUserID
		}
		if _, ok := latest[peer]; ok {
			continue
		}
		latest[peer] = m
		order = append(order, peer)
	}
	if len(order) == 0 {
		return []PartnerDTO{}, nil
	}

	unread, err := s.unreadCounts(selfID)
	if err != nil {
		return nil, err
	}

	var users []models.User
	if err := s.db.Select("id", "username", "name", "avatar", "is_online", "last_seen").
		Where("id IN ?", order).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]PartnerDTO, 0, len(order))
	for _, peer := range order {
		u := byID[peer]
		m := latest[peer]
		out = append(out, PartnerDTO{
			UserID:        peer,
			Username:      u.Username,
			Name:          u.Name,
			Avatar:        u.Avatar,
			Online:        s.hub.Online(peer),
			LastSeen:      u.LastSeen,
			Unread:        unread[peer],
			LastMessage:   m.Content,
			LastMessageAt: m.CreatedAt,
			LastFromMe:    m.FromUserID == selfID,
		})
	}
	return out, nil
}

// unreadCounts 按发送者分组统计发给该用户的未读消息数。
func (s *ConversationService) unreadCounts(selfID uint) (map[uint]int64, error) {
	type row struct {
		FromUserID uint
		Count      int64
	}
	var rows []row
	err := s.db.Model(&models.Message{}).
		Select("from_user_id, count(*) as count").
		Where("to_user_id = ? AND is_read = ?", selfID, false).
		Group("from_user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.FromUserID] = r.Count
	}
	return out, nil
}
