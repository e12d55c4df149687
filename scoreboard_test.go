package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// mockFanout captures broadcast messages
type mockFanout struct {
	mu       sync.Mutex
	messages []interface{}
}

func (m *mockFanout) SendAll(msg interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mockFanout) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func TestScoreboardLocalOnly(t *testing.T) {
	db := openTestDB(t)
	sb := NewScoreboard(db, "", ScoreboardConfig{})
	fan := &mockFanout{}
	sb.Start(fan)

	sb.RecordKill(KillEvent{KillerID: "a", KillerName: "Ace", KillerKills: 1, At: time.Now()})

	deadline := time.Now().Add(2 * time.Second)
	for fan.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	sb.Stop()

	if fan.count() != 1 {
		t.Fatalf("got %d broadcasts, want 1", fan.count())
	}
	env, ok := fan.messages[0].(Envelope)
	if !ok || env.Type != MsgScoreboard {
		t.Fatalf("broadcast = %#v", fan.messages[0])
	}
	list := env.Payload.(ScoreboardList)
	if list.Count != 1 || list.Items[0].Name != "Ace" || list.Items[0].Score != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestScoreboardRemote(t *testing.T) {
	var mu sync.Mutex
	var posted []ScoreboardItem
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var it ScoreboardItem
			json.NewDecoder(r.Body).Decode(&it)
			mu.Lock()
			posted = append(posted, it)
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		case http.MethodGet:
			if r.URL.Query().Get("maxItems") != "25" {
				t.Errorf("maxItems = %q", r.URL.Query().Get("maxItems"))
			}
			json.NewEncoder(w).Encode(ScoreboardList{Items: []ScoreboardItem{{ID: "remote", Name: "R", Score: 9}}})
		}
	}))
	defer srv.Close()

	sb := NewScoreboard(nil, srv.URL+"/scoreboard", ScoreboardConfig{})
	list, err := sb.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Items[0].ID != "remote" {
		t.Errorf("list = %+v", list)
	}

	sb.record(KillEvent{KillerID: "k", KillerKills: 2, KillerImage: "img", At: time.Now()})
	mu.Lock()
	defer mu.Unlock()
	if len(posted) != 1 || posted[0].ID != "k" || posted[0].Name != "k" || posted[0].Score != 2 || posted[0].ShipImageURL != "img" {
		t.Errorf("posted = %+v", posted)
	}
}

func TestScoreboardFallsBackToLedger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	db := openTestDB(t)
	db.UpsertScore(ScoreboardItem{ID: "local", Name: "L", Score: 4}, time.Now())
	sb := NewScoreboard(db, srv.URL, ScoreboardConfig{})

	list, err := sb.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Items[0].ID != "local" {
		t.Errorf("list = %+v, want the local ledger", list)
	}
}

func TestScoreboardRecordKillNeverBlocks(t *testing.T) {
	sb := NewScoreboard(nil, "", ScoreboardConfig{})
	// Worker not started: the queue fills and further events are dropped
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			sb.RecordKill(KillEvent{KillerID: "a"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordKill blocked")
	}
}

func TestScoreboardDrainSkipsRemote(t *testing.T) {
	var mu sync.Mutex
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		posts++
		mu.Unlock()
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	db := openTestDB(t)
	sb := NewScoreboard(db, srv.URL+"/scoreboard", ScoreboardConfig{})
	for i := 1; i <= 50; i++ {
		sb.RecordKill(KillEvent{KillerID: "a", KillerName: "Ace", KillerKills: i, At: time.Now()})
	}

	start := time.Now()
	sb.drain()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("drain took %v", elapsed)
	}

	mu.Lock()
	n := posts
	mu.Unlock()
	if n != 0 {
		t.Errorf("drain made %d remote calls, want 0", n)
	}
	items, err := db.TopScores(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Score != 50 {
		t.Errorf("ledger = %+v, want Ace at 50", items)
	}
	if len(sb.events) != 0 {
		t.Errorf("%d events left queued", len(sb.events))
	}
}
