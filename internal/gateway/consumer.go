package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// wireMessage is the gateway envelope.
type wireMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Consumer maintains the gateway websocket connection and feeds the
// dispatcher. It reconnects with a fixed backoff until the context ends.
type Consumer struct {
	url        string
	token      string
	backoff    time.Duration
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewConsumer creates a gateway consumer.
func NewConsumer(url, token string, backoff time.Duration, d *Dispatcher, logger *zap.Logger) *Consumer {
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{url: url, token: token, backoff: backoff, dispatcher: d, logger: logger}
}

// Run connects and consumes events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if err := c.connectAndRead(ctx); err != nil {
			c.logger.Warn("gateway connection lost", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
}

func (c *Consumer) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bot "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.logger.Info("gateway connected", zap.String("url", c.url))

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Ping loop; also closes the connection when ctx ends so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.dispatcher.Dispatch(msg.Event, msg.Data)
	}
}
