package ws

import "khadamat/internal/models"

// MessageStore 是消息子系统依赖的持久层最小接口，由 service 层实现。
// 消息只增不删，唯一的更新路径是批量已读标记。
type MessageStore interface {
	CreateMessage(fromUserID, toUserID uint, content string, orderID *uint) (*models.Message, error)
	// MarkConversationRead 把 fromUserID 发给 toUserID 的全部未读消息置为已读，
	// 返回更新行数。重复调用是幂等的。
	MarkConversationRead(fromUserID, toUserID uint) (int64, error)
	// ConversationExists 判断两个用户之间是否存在任意方向的历史消息。
	ConversationExists(a, b uint) (bool, error)
}

// PresenceStore 负责把在线状态写回用户表。
type PresenceStore interface {
	UpdatePresence(userID uint, online bool) error
}

// IdentityVerifier 在握手阶段把 bearer token 解析为用户身份，
// 失败即终止握手，连接永远不会进入命令处理状态。
type IdentityVerifier interface {
	Verify(token string) (*models.User, error)
}
