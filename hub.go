package main

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Hub tracks connected clients and fans snapshots out to them. It is the
// game's Transport.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once

	game       *Game
	spawner    *Spawner
	scoreboard *Scoreboard
	tokens     *TokenIssuer

	// per-IP and total socket counts; touched by HTTP handlers, not Run
	connMu        sync.Mutex
	ipConns       map[string]int
	totalConns    int
	maxConnsPerIP int
	maxTotalConns int
}

// HubDeps are the collaborators a Hub routes client messages to
type HubDeps struct {
	Game          *Game
	Spawner       *Spawner
	Scoreboard    *Scoreboard
	Tokens        *TokenIssuer
	MaxConnsPerIP int
	MaxTotalConns int
}

// NewHub creates a new Hub
func NewHub(deps HubDeps) *Hub {
	h := &Hub{
		clients:       make(map[*Client]bool),
		register:      make(chan *Client, 64),
		unregister:    make(chan *Client, 64),
		done:          make(chan struct{}),
		game:          deps.Game,
		spawner:       deps.Spawner,
		scoreboard:    deps.Scoreboard,
		tokens:        deps.Tokens,
		ipConns:       make(map[string]int),
		maxConnsPerIP: deps.MaxConnsPerIP,
		maxTotalConns: deps.MaxTotalConns,
	}
	if h.maxConnsPerIP <= 0 {
		h.maxConnsPerIP = 5
	}
	if h.maxTotalConns <= 0 {
		h.maxTotalConns = 1000
	}
	return h
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= h.maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= h.maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events until Close
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			// The ship stays in the world; it expires once its input goes stale.

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// join queues a client for registration. It reports false once the hub has
// shut down.
func (h *Hub) join(c *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave queues a client for removal; after shutdown Run has already closed
// every send queue, so there is nothing left to do.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Close disconnects every client and signals Done
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Done is closed when the hub shuts down
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Broadcast sends a snapshot to every client, encoding it once per codec.
// Slow clients drop the frame.
func (h *Hub) Broadcast(state GameState) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	var jsonFrame, binFrame []byte
	for c := range h.clients {
		if c.codec == codecMsgpack {
			if binFrame == nil {
				data, err := msgpack.Marshal(&state)
				if err != nil {
					log.Printf("[hub] msgpack encode: %v", err)
					continue
				}
				binFrame = data
			}
			c.queue(frame{binary: true, data: binFrame})
			continue
		}
		if jsonFrame == nil {
			data, err := json.Marshal(Envelope{Type: MsgGameState, Payload: state})
			if err != nil {
				log.Printf("[hub] json encode: %v", err)
				continue
			}
			jsonFrame = data
		}
		c.queue(frame{data: jsonFrame})
	}
}

// SendAll sends a JSON message to every client
func (h *Hub) SendAll(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[hub] marshal error: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.queue(frame{data: data})
	}
}

// ClientCount is the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns counts upgraded sockets, including ones not yet registered.
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
