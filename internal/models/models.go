package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string `gorm:"size:128"`
	Avatar       string `gorm:"size:255"`
	IsOnline     bool   `gorm:"not null;default:false"`
	LastSeen     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message 是买卖双方之间的私信，仅 IsRead 字段会被更新，其余字段写入后不变。
type Message struct {
	ID         uint   `gorm:"primaryKey"`
	FromUserID uint   `gorm:"index:idx_msg_pair;not null"`
	ToUserID   uint   `gorm:"index:idx_msg_pair;index:idx_msg_unread;not null"`
	Content    string `gorm:"type:text;not null"`
	OrderID    *uint  `gorm:"index"`
	IsRead     bool   `gorm:"index:idx_msg_unread;not null;default:false"`
	CreatedAt  time.Time
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
