package main

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBUpsertScoreKeepsBest(t *testing.T) {
	db := openTestDB(t)
	now := time.Unix(1_700_000_000, 0)

	if err := db.UpsertScore(ScoreboardItem{ID: "a", Name: "Ace", Score: 5}, now); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertScore(ScoreboardItem{ID: "a", Name: "Ace II", Score: 2}, now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	db.UpsertScore(ScoreboardItem{ID: "b", Name: "Bee", Score: 3}, now)

	top, err := db.TopScores(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d rows, want 2", len(top))
	}
	if top[0].ID != "a" || top[0].Score != 5 || top[0].Name != "Ace II" {
		t.Errorf("top[0] = %+v, want a with best score 5 and latest name", top[0])
	}
	if top[1].ID != "b" {
		t.Errorf("top[1] = %+v", top[1])
	}
}

func TestDBTopScoresLimit(t *testing.T) {
	db := openTestDB(t)
	now := time.Unix(1_700_000_000, 0)
	for i, id := range []string{"a", "b", "c", "d"} {
		db.UpsertScore(ScoreboardItem{ID: id, Score: i}, now)
	}
	top, err := db.TopScores(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].ID != "d" || top[1].ID != "c" {
		t.Errorf("top = %+v", top)
	}
}

func TestDBSettings(t *testing.T) {
	db := openTestDB(t)
	if v := db.GetSetting("missing"); v != "" {
		t.Errorf("missing setting = %q", v)
	}
	if err := db.SetSetting("k", "v1"); err != nil {
		t.Fatal(err)
	}
	db.SetSetting("k", "v2")
	if v := db.GetSetting("k"); v != "v2" {
		t.Errorf("setting = %q, want v2", v)
	}
}
