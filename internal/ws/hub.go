package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// PersonalRoom 返回用户的个人通知房间 id，连接建立后即加入、断开才离开。
func PersonalRoom(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

// ConversationRoom 返回两个用户之间会话房间的 id。两个 id 先按升序规整，
// 保证收发双方在消息发送和加入会话两条路径上算出同一个房间。
func ConversationRoom(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("conversation_%d_%d", a, b)
}

// Hub 是房间成员关系的唯一持有者：一把锁保护 roomID 到连接集合的映射，
// 外部只能通过 Join/Leave/Emit 系列方法访问。
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	store MessageStore
}

func NewHub(store MessageStore) *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{}), store: store}
}

// JoinPersonalRoom 无条件把连接加入其个人房间，认证成功后立即调用。
func (h *Hub) JoinPersonalRoom(c *Client) {
	h.join(PersonalRoom(c.userID), c)
}

// JoinConversation 校验该用户与对端存在历史消息后才加入会话房间。
// 校验不通过返回 false，连接保持原状，调用方只记日志、不断开。
func (h *Hub) JoinConversation(c *Client, peerID uint) bool {
	ok, err := h.store.ConversationExists(c.userID, peerID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", c.userID).Uint("peer_id", peerID).Msg("conversation authorization check")
		return false
	}
	if !ok {
		return false
	}
	h.join(ConversationRoom(c.userID, peerID), c)
	return true
}

func (h *Hub) join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[roomID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[roomID] = room
	}
	room[c] = struct{}{}
}

// LeaveAll 移除该连接的全部房间成员关系，断开时调用，重复调用无害。
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Emit 把事件投递给房间内的所有连接，尽力而为、不收集回执。
func (h *Hub) Emit(roomID string, event interface{}) {
	h.EmitExcept(roomID, event, nil)
}

// EmitExcept 同 Emit，但跳过 except 指向的连接（用于 typing 广播排除发送者）。
// 发送缓冲已满的慢连接会被直接剔除，由其读循环完成后续清理。
func (h *Hub) EmitExcept(roomID string, event interface{}, except *Client) {
	b, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("marshal room event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[roomID]
	for c := range room {
		if c == except {
			continue
		}
		if !c.trySend(b) {
			delete(room, c)
			c.closeSend()
		}
	}
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
}

// RoomSize 返回房间当前成员数。
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Online 通过个人房间是否有成员判断用户是否在线，供会话列表接口复用。
func (h *Hub) Online(userID uint) bool {
	return h.RoomSize(PersonalRoom(userID)) > 0
}
