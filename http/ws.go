package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"healthpredict/pipeline"
	"healthpredict/predictor"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 4096
)

// MessageType 消息类型
type MessageType string

const (
	MessagePrediction MessageType = "prediction"
	MessageError      MessageType = "error"
	MessageStatus     MessageType = "status"
)

// LiveMessage 实时预测推送的消息
type LiveMessage struct {
	Type      MessageType       `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Result    *predictResponse  `json:"result,omitempty"`
	Status    *predictor.Status `json:"status,omitempty"`
	Error     string            `json:"error,omitempty"`
	Field     string            `json:"field,omitempty"`
	HTML      string            `json:"html,omitempty"`
}

// wsClient WebSocket客户端
type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string
}

// PredictionHub 管理实时预测的WebSocket连接
type PredictionHub struct {
	clients   map[*wsClient]bool
	broadcast chan []byte
	mu        sync.RWMutex
	upgrader  websocket.Upgrader
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewPredictionHub 创建WebSocket中心
func NewPredictionHub() *PredictionHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &PredictionHub{
		clients:   make(map[*wsClient]bool),
		broadcast: make(chan []byte, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 分发广播消息，直到 Stop 被调用
func (h *PredictionHub) Run() {
	for {
		select {
		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					logger.Warn("websocket client too slow, dropping message", zap.String("client_id", client.clientID))
				}
			}
			h.mu.RUnlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止WebSocket中心并关闭所有连接
func (h *PredictionHub) Stop() {
	h.cancel()
}

// ClientCount 当前连接数
func (h *PredictionHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastStatus 通知所有客户端模型状态变化
func (h *PredictionHub) BroadcastStatus(status predictor.Status) {
	data, err := json.Marshal(LiveMessage{Type: MessageStatus, Timestamp: time.Now(), Status: &status})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.Warn("websocket broadcast queue is full, dropping message")
	}
}

func (h *PredictionHub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return false
	}
	h.clients[c] = true
	return true
}

func (h *PredictionHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeHTTP 处理WebSocket连接
func (h *PredictionHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn:     conn,
		send:     make(chan []byte, 16),
		clientID: uuid.NewString(),
	}
	if !h.register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	logger.Info("websocket client connected", zap.String("client_id", client.clientID), zap.Int("total", h.ClientCount()))

	go client.writePump()
	go client.readPump(h)
}

// writePump WebSocket写入泵
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write failed", zap.String("client_id", c.clientID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 每条文本消息是一行特征，回复预测结果或错误
func (c *wsClient) readPump(h *PredictionHub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		logger.Info("websocket client disconnected", zap.String("client_id", c.clientID))
	}()

	c.conn.SetReadLimit(wsMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.String("client_id", c.clientID), zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		reply, err := json.Marshal(handleLiveMessage(h.ctx, c.clientID, data))
		if err != nil {
			logger.Error("encode websocket reply", zap.Error(err))
			continue
		}

		h.mu.RLock()
		_, alive := h.clients[c]
		if alive {
			select {
			case c.send <- reply:
			default:
				logger.Warn("websocket send buffer full", zap.String("client_id", c.clientID))
			}
		}
		h.mu.RUnlock()
		if !alive {
			return
		}
	}
}

func handleLiveMessage(ctx context.Context, clientID string, data []byte) LiveMessage {
	msg := LiveMessage{Timestamp: time.Now()}
	renderer := currentRenderer()

	row, err := decodePredictRequest(data)
	var result predictor.Result
	if err == nil {
		result, err = runPrediction(ctx, sourceWS, row)
	}
	if err != nil {
		msg.Type = MessageError
		msg.Error = err.Error()
		var inputErr *pipeline.InputError
		if errors.As(err, &inputErr) {
			msg.Field = inputErr.Field
		}
		if status, _ := classifyError(err); status == http.StatusInternalServerError {
			logger.Error("live prediction failed", zap.String("client_id", clientID), zap.Error(err))
		}
	} else {
		msg.Type = MessagePrediction
		response := newPredictResponse(clientID, result)
		msg.Result = &response
	}

	var resultPtr *predictor.Result
	if err == nil {
		resultPtr = &result
	}
	var buf bytes.Buffer
	if renderErr := renderer.RenderResults(&buf, renderer.NewPage(row, resultPtr, err)); renderErr == nil {
		msg.HTML = buf.String()
	}
	return msg
}
