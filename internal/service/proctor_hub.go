package service

import (
	"context"
	"encoding/json"
	"lms_backend/internal/model"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

const (
	EventSessionStarted    = "SESSION_STARTED"
	EventRecordingStarted  = "RECORDING_STARTED"
	EventViolation         = "VIOLATION"
	EventSubmitted         = "SUBMITTED"
	EventSessionExpired    = "SESSION_EXPIRED"
	EventRecordingUploaded = "RECORDING_UPLOADED"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProctorEvent 推送给监考端的会话事件
type ProctorEvent struct {
	Type           string                 `json:"type"`
	SessionID      string                 `json:"sessionId"`
	UserID         uint                   `json:"userId"`
	AssessmentID   uint                   `json:"assessmentId"`
	Status         model.SessionStatus    `json:"status"`
	ViolationCount int                    `json:"violationCount"`
	Data           map[string]interface{} `json:"data,omitempty"`
	At             time.Time              `json:"at"`
}

// MonitorClient 一个已连接的监考端；AssessmentID 为 0 时接收全部事件
type MonitorClient struct {
	Hub          *ProctorHub
	Conn         *websocket.Conn
	Send         chan []byte
	UserID       uint
	AssessmentID uint
}

func (c *MonitorClient) readPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		// 监考端只接收事件，读取仅用于维持心跳和感知断开
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}
	}
}

func (c *MonitorClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type hubMessage struct {
	assessmentID uint
	payload      []byte
}

// ProctorHub 进程内监考事件广播
type ProctorHub struct {
	clients    map[*MonitorClient]bool
	mu         sync.RWMutex
	broadcast  chan hubMessage
	register   chan *MonitorClient
	unregister chan *MonitorClient
	// Run 退出后关闭
	done     chan struct{}
	stopOnce sync.Once
}

func NewProctorHub() *ProctorHub {
	return &ProctorHub{
		clients:    make(map[*MonitorClient]bool),
		broadcast:  make(chan hubMessage, 256),
		register:   make(chan *MonitorClient),
		unregister: make(chan *MonitorClient),
		done:       make(chan struct{}),
	}
}

func (h *ProctorHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.stop()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			monitoring.ProctorMonitors.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				monitoring.ProctorMonitors.Dec()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.AssessmentID != 0 && client.AssessmentID != msg.assessmentID {
					continue
				}
				select {
				case client.Send <- msg.payload:
				default:
					// 慢客户端直接断开
					delete(h.clients, client)
					close(client.Send)
					monitoring.ProctorMonitors.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish 非阻塞投递，队列满时丢弃
func (h *ProctorHub) Publish(evt ProctorEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Log.Error("Failed to encode proctor event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- hubMessage{assessmentID: evt.AssessmentID, payload: payload}:
	default:
		logger.Log.Warn("Proctor event dropped", zap.String("type", evt.Type), zap.String("sessionId", evt.SessionID))
	}
}

// ServeWs 升级为 WebSocket 并注册监考端
func (h *ProctorHub) ServeWs(w http.ResponseWriter, r *http.Request, userID, assessmentID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	client := &MonitorClient{
		Hub:          h,
		Conn:         conn,
		Send:         make(chan []byte, sendBuffer),
		UserID:       userID,
		AssessmentID: assessmentID,
	}
	if !h.join(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// join 注册监考端；hub 已停止时返回 false
func (h *ProctorHub) join(c *MonitorClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave 注销监考端；hub 已停止时 stop 已经关闭了所有发送通道
func (h *ProctorHub) leave(c *MonitorClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Done 在 Run 退出后关闭
func (h *ProctorHub) Done() <-chan struct{} {
	return h.done
}

func (h *ProctorHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *ProctorHub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
		monitoring.ProctorMonitors.Dec()
	}
	logger.Named("proctor_hub").Info("ProctorHub stopped")
}
