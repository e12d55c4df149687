package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Fanout delivers a message to every connected client
type Fanout interface {
	SendAll(msg interface{})
}

// Scoreboard records kills in the local ledger and the remote scoreboard
// service, then pushes the refreshed top list to every client. Kill events
// are queued from the simulation tick and handled on a background worker.
type Scoreboard struct {
	db       *DB
	client   *http.Client
	endpoint string // remote service; empty disables it
	maxItems int
	timeout  time.Duration

	events chan KillEvent
	stop   chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	fanout Fanout
}

// NewScoreboard creates a Scoreboard. db may be nil, endpoint may be empty.
func NewScoreboard(db *DB, endpoint string, cfg ScoreboardConfig) *Scoreboard {
	s := &Scoreboard{
		db:       db,
		client:   &http.Client{},
		endpoint: endpoint,
		maxItems: cfg.MaxItems,
		timeout:  time.Duration(cfg.TimeoutMS) * time.Millisecond,
		events:   make(chan KillEvent, 256),
		stop:     make(chan struct{}),
	}
	if s.maxItems <= 0 {
		s.maxItems = 25
	}
	if s.timeout <= 0 {
		s.timeout = 1500 * time.Millisecond
	}
	return s
}

// Start launches the background worker. Refreshed lists go to f.
func (s *Scoreboard) Start(f Fanout) {
	s.mu.Lock()
	s.fanout = f
	s.mu.Unlock()
	s.wg.Add(1)
	go s.worker()
}

// RecordKill enqueues a kill event (non-blocking)
func (s *Scoreboard) RecordKill(evt KillEvent) {
	select {
	case s.events <- evt:
	default:
		// Queue full; drop rather than stall the tick
	}
}

// Stop writes queued events to the local ledger and waits for the worker
func (s *Scoreboard) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scoreboard) worker() {
	defer s.wg.Done()
	for {
		select {
		case evt := <-s.events:
			s.handle(evt)
		case <-s.stop:
			s.drain()
			return
		}
	}
}

// drain writes whatever is still queued to the local ledger only, so a dead
// scoreboard service cannot hold up shutdown.
func (s *Scoreboard) drain() {
	for {
		select {
		case evt := <-s.events:
			s.store(evt)
		default:
			return
		}
	}
}

func (s *Scoreboard) handle(evt KillEvent) {
	s.record(evt)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	list, err := s.Latest(ctx)
	if err != nil {
		log.Printf("[scoreboard] refresh failed: %v", err)
		return
	}
	s.mu.Lock()
	f := s.fanout
	s.mu.Unlock()
	if f != nil {
		f.SendAll(Envelope{Type: MsgScoreboard, Payload: list})
	}
}

// record stores the killer's score locally and remotely
func (s *Scoreboard) record(evt KillEvent) {
	item := s.store(evt)
	if s.endpoint == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.post(ctx, item); err != nil {
		log.Printf("[scoreboard] POST failed: %v", err)
	}
}

// store upserts the killer's score into the local ledger
func (s *Scoreboard) store(evt KillEvent) ScoreboardItem {
	item := ScoreboardItem{
		ID:           evt.KillerID,
		Name:         evt.KillerName,
		Score:        evt.KillerKills,
		ShipImageURL: evt.KillerImage,
	}
	if item.Name == "" {
		item.Name = evt.KillerID
	}

	if s.db != nil {
		if err := s.db.UpsertScore(item, evt.At); err != nil {
			log.Printf("[scoreboard] %v", err)
		}
	}
	return item
}

func (s *Scoreboard) post(ctx context.Context, item ScoreboardItem) error {
	body, err := json.Marshal(item)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrServiceStatus, resp.StatusCode)
	}
	return nil
}

// Latest returns the top of the scoreboard from the remote service, falling
// back to the local ledger when the service is unavailable
func (s *Scoreboard) Latest(ctx context.Context) (ScoreboardList, error) {
	if s.endpoint != "" {
		list, err := s.fetchRemote(ctx)
		if err == nil {
			return list, nil
		}
		log.Printf("[scoreboard] remote list unavailable: %v", err)
	}
	return s.Local()
}

// Local returns the top of the local ledger
func (s *Scoreboard) Local() (ScoreboardList, error) {
	if s.db == nil {
		return ScoreboardList{Items: []ScoreboardItem{}}, nil
	}
	items, err := s.db.TopScores(s.maxItems)
	if err != nil {
		return ScoreboardList{}, err
	}
	return ScoreboardList{Items: items, Count: len(items)}, nil
}

func (s *Scoreboard) fetchRemote(ctx context.Context) (ScoreboardList, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := url.Parse(s.endpoint)
	if err != nil {
		return ScoreboardList{}, err
	}
	q := u.Query()
	q.Set("maxItems", strconv.Itoa(s.maxItems))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return ScoreboardList{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ScoreboardList{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return ScoreboardList{}, fmt.Errorf("%w: %d", ErrServiceStatus, resp.StatusCode)
	}
	var list ScoreboardList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return ScoreboardList{}, fmt.Errorf("decode scoreboard: %w", err)
	}
	if list.Items == nil {
		list.Items = []ScoreboardItem{}
	}
	if list.Count == 0 {
		list.Count = len(list.Items)
	}
	return list, nil
}
