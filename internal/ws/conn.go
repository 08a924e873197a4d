package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"khadamat/internal/auth"
	"khadamat/internal/config"
	"khadamat/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client 代表一条已认证的 WebSocket 连接及其命令处理状态。
type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	store      MessageStore
	presence   *PresenceTracker
	sendMu     sync.Mutex
	sendClosed bool

	userID   uint
	username string
	name     string
	avatar   string
	maxChars int
}

// Serve 处理 WebSocket 握手：先验证身份，再升级连接。
// 验证失败直接返回 401，连接永远不会注册任何房间或在线状态。
func Serve(hub *Hub, store MessageStore, presence *PresenceTracker, verifier IdentityVerifier, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		user, err := verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &Client{
			id:       uuid.NewString(),
			hub:      hub,
			conn:     conn,
			send:     make(chan []byte, 256),
			store:    store,
			presence: presence,
			userID:   user.ID,
			username: user.Username,
			name:     user.Name,
			avatar:   user.Avatar,
			maxChars: cfg.MaxMessageChars,
		}

		hub.JoinPersonalRoom(client)
		presence.MarkOnline(client.userID)
		metrics.WsConnections.Inc()
		log.Info().Str("conn_id", client.id).Uint("user_id", client.userID).Msg("ws connected")

		go client.writePump()
		client.readPump()
	}
}

// senderName 返回展示给对方的名称，资料页姓名缺失时退回用户名。
func (c *Client) senderName() string {
	if c.name != "" {
		return c.name
	}
	return c.username
}

// trySend 向发送缓冲投递一条消息，连接已关闭或缓冲已满时返回 false。
// 命令在独立 goroutine 中处理，存储调用返回时连接可能早已断开，
// 所以对 send 的写入和关闭必须共用同一把锁。
func (c *Client) trySend(b []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// closeSend 关闭发送通道，Hub 剔除慢连接和正常断开都会走到这里。
// 之后 trySend 只会返回 false，处理中的命令不会写到已关闭的通道上。
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.LeaveAll(c)
		c.presence.MarkOffline(c.userID)
		metrics.WsConnections.Dec()
		c.closeSend()
		_ = c.conn.Close()
		log.Info().Str("conn_id", c.id).Uint("user_id", c.userID).Msg("ws disconnected")
	}()
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var ev InboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Debug().Err(err).Str("conn_id", c.id).Msg("malformed inbound event")
			continue
		}
		// 每条命令独立处理，存储调用不阻塞同连接的后续命令
		go c.dispatch(ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
