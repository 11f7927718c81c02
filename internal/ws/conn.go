package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/asmorodws/chatapp-nextjs/internal/auth"
	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/asmorodws/chatapp-nextjs/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 16
	sendBuffer     = 256

	// 单连接入站事件限速
	eventRate  = 20
	eventBurst = 40
)

var errSlowClient = errors.New("send buffer full")

// Dispatcher 是连接读循环依赖的聊天核心。
type Dispatcher interface {
	Dispatch(ctx context.Context, conn chat.Conn, in chat.Inbound) error
	Disconnect(conn chat.Conn)
}

type Client struct {
	id       string
	userID   string
	username string
	conn     *websocket.Conn
	send     chan []byte
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (c *Client) chatConn() chat.Conn { return chat.Conn{ID: c.id, UserID: c.userID} }

// Serve 校验 token 后升级为 WebSocket。可选的 room_id 参数会在连接建立后自动加入该房间。
func Serve(gw *Gateway, core Dispatcher, db *gorm.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.TokenFromRequest(c.Request, true)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		user, err := auth.Authenticate(db, cfg.JWTSecret, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Msg("ws upgrade")
			return
		}
		client := &Client{
			id:       uuid.NewString(),
			userID:   user.ID,
			username: user.Username,
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
		}
		gw.register(client)
		log.Info().Str("conn_id", client.id).Str("user_id", client.userID).Msg("ws connected")

		go client.writePump()
		client.readPump(gw, core, c.Query("room_id"))
	}
}

func (c *Client) readPump(gw *Gateway, core Dispatcher, initialRoom string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		// 先移除会话，再关闭发送队列
		core.Disconnect(c.chatConn())
		gw.unregister(c)
		_ = c.conn.Close()
		log.Info().Str("conn_id", c.id).Str("user_id", c.userID).Msg("ws disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if initialRoom != "" {
		_ = core.Dispatch(ctx, c.chatConn(), chat.Inbound{Type: chat.EventJoinRoom, RoomID: initialRoom})
	}

	lim := rate.NewLimiter(eventRate, eventBurst)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("ws read")
			}
			return
		}
		if !lim.Allow() {
			c.reject(gw, "too many events")
			continue
		}
		var in chat.Inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			c.reject(gw, "malformed event")
			continue
		}
		if in.Type == chat.EventDisconnect {
			return
		}
		if err := core.Dispatch(ctx, c.chatConn(), in); err != nil {
			log.Debug().Err(err).Str("conn_id", c.id).Str("event", in.Type).Msg("dispatch")
		}
	}
}

func (c *Client) reject(gw *Gateway, reason string) {
	b, err := json.Marshal(chat.Event{Type: chat.EventError, Data: chat.ErrorPayload{Reason: reason}})
	if err != nil {
		return
	}
	_ = gw.Deliver(c.id, b)
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
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
