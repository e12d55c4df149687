package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 120
	maxPromptLen      = 500
)

const (
	codecJSON    = "json"
	codecMsgpack = "msgpack"
)

// frame is one queued outbound WebSocket message
type frame struct {
	binary bool
	data   []byte
}

// Client represents a WebSocket connection bound to one entity id
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan frame
	id         string // entity id
	remoteAddr string
	codec      string
	msgCount   int
	msgResetAt time.Time
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewClient wraps an upgraded socket for the given entity.
func NewClient(hub *Hub, conn *websocket.Conn, id, remoteAddr, codec string) *Client {
	if codec != codecMsgpack {
		codec = codecJSON
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan frame, sendBufSize),
		id:         id,
		remoteAddr: remoteAddr,
		codec:      codec,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// ReadPump decodes inbound frames until the socket fails, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[hub] ws error: %v", err)
			}
			break
		}

		// at most maxMessagesPerSec frames per rolling second
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("[hub] rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump drains the send queue and keeps the socket alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			msgType := websocket.TextMessage
			if f.binary {
				msgType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(msgType, f.data); err != nil {
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

// queue enqueues a frame without blocking; a full buffer drops it
func (c *Client) queue(f frame) {
	defer func() { recover() }() // send on a client closed by the hub
	select {
	case c.send <- f:
	default:
	}
}

// SendJSON queues one JSON text frame; dropped if the queue is full.
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[hub] marshal error: %v", err)
		return
	}
	c.queue(frame{data: data})
}

// Info sends an informational message
func (c *Client) Info(msg string) {
	c.SendJSON(Envelope{Type: MsgInfo, Payload: msg})
}

// Error sends an error message
func (c *Client) Error(msg string) {
	c.SendJSON(Envelope{Type: MsgError, Payload: msg})
}

// Welcome tells the client who it is and pushes the latest scoreboard
func (c *Client) Welcome(token string) {
	c.SendJSON(Envelope{Type: MsgConnected, Payload: ConnectedMsg{ID: c.id, Token: token}})
	if c.hub.scoreboard != nil {
		go func() {
			list, err := c.hub.scoreboard.Latest(c.ctx)
			if err != nil {
				return
			}
			c.SendJSON(Envelope{Type: MsgScoreboard, Payload: list})
		}()
	}
}

// handleMessage routes incoming messages
func (c *Client) handleMessage(raw []byte) {
	if string(raw) == "ping" {
		c.SendJSON(Envelope{Type: "echo", Payload: "pong"})
		return
	}

	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.Error("invalid JSON")
		return
	}
	if env.Type == "" {
		c.Error(`message must have a string "type" field`)
		return
	}

	switch env.Type {
	case MsgPing:
		c.SendJSON(Envelope{Type: MsgPing})
	case MsgInputSnapshot:
		c.handleInputSnapshot(env.Data())
	case MsgStartWithDefault:
		c.handleStartWithDefault(env.Data())
	case MsgStartWithPrompt:
		c.handleStartWithPrompt(env.Data())
	default:
		c.Error(fmt.Sprintf("unknown message type: %s", env.Type))
	}
}

func (c *Client) handleInputSnapshot(data json.RawMessage) {
	if len(data) == 0 {
		return
	}
	var p InputSnapshotPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	c.hub.game.RecordInput(c.id, p.Update())
}

func (c *Client) handleStartWithDefault(data json.RawMessage) {
	var body StartWithDefaultBody
	if len(data) > 0 {
		json.Unmarshal(data, &body)
	}
	target := c.id
	if body.UserID != "" {
		target = body.UserID
	}
	if _, err := c.hub.spawner.SpawnDefault(target); err != nil {
		c.Error(err.Error())
		return
	}
	c.Info("default ship created for " + target)
}

func (c *Client) handleStartWithPrompt(data json.RawMessage) {
	var p StartWithPromptPayload
	if len(data) > 0 {
		json.Unmarshal(data, &p)
	}
	prompt, err := validatePrompt(p.Prompt)
	if err != nil {
		c.Error(err.Error())
		return
	}
	// Generation takes seconds; never hold the read loop or the tick for it.
	go c.hub.spawner.SpawnFromPrompt(c.ctx, c.id, c.remoteAddr, prompt, c)
}
