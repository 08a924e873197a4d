package ws

import (
	"sync"

	"github.com/rs/zerolog/log"

	"khadamat/internal/metrics"
)

// PresenceTracker 把连接的上下线镜像到用户表。每个用户只登记最新的
// 目标状态，由独立 goroutine 逐条落库。同一用户的旧状态直接被新状态
// 覆盖，所以登记永远不阻塞，下线更新也永远不会因为积压被丢掉。
// 写入失败只记日志，绝不影响连接本身。
type PresenceTracker struct {
	store    PresenceStore
	mu       sync.Mutex
	pending  map[uint]bool
	wake     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewPresenceTracker(store PresenceStore) *PresenceTracker {
	return &PresenceTracker{
		store:   store,
		pending: make(map[uint]bool),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Run 消费登记的状态并逐条落库，应在独立 goroutine 中启动。
// 单消费者保证同一用户的 last_seen 不会回退。
func (t *PresenceTracker) Run() {
	for {
		select {
		case <-t.wake:
			t.flush()
		case <-t.stopped:
			// 停止前把已登记的状态处理完
			t.flush()
			return
		}
	}
}

// Stop 通知 Run 清空积压后退出，重复调用无害。
func (t *PresenceTracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// MarkOnline 记录用户上线。
func (t *PresenceTracker) MarkOnline(userID uint) {
	t.enqueue(userID, true)
}

// MarkOffline 记录用户下线。任一连接断开都会覆盖写 offline，
// 同一用户的其他连接不做引用计数。
func (t *PresenceTracker) MarkOffline(userID uint) {
	t.enqueue(userID, false)
}

func (t *PresenceTracker) enqueue(userID uint, online bool) {
	t.mu.Lock()
	t.pending[userID] = online
	t.mu.Unlock()
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *PresenceTracker) flush() {
	for {
		t.mu.Lock()
		var userID uint
		var online, ok bool
		for id, st := range t.pending {
			userID, online, ok = id, st, true
			break
		}
		if ok {
			delete(t.pending, userID)
		}
		t.mu.Unlock()
		if !ok {
			return
		}
		if err := t.store.UpdatePresence(userID, online); err != nil {
			metrics.PresenceWriteFailures.Inc()
			log.Error().Err(err).Uint("user_id", userID).Bool("online", online).Msg("presence write")
		}
	}
}
