package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeAssetServer stands in for the asset services
func fakeAssetServer(t *testing.T) (*httptest.Server, ServicesConfig) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/generate-space-ship", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["prompt"] == "forbidden" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "prompt rejected"})
			return
		}
		if body["prompt"] == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sprites": map[string]interface{}{
				"thrustersOnMuzzleOff": map[string]string{"url": "http://img/on-off.png"},
			},
		})
	})
	mux.HandleFunc("/generate-sprite-sheet", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sprites": map[string]interface{}{
				"thrustersOffMuzzleOff": map[string]string{"url": "http://img/off-off.png"},
				"thrustersOffMuzzleOn":  map[string]string{"url": "http://img/off-on.png"},
				"thrustersOnMuzzleOff":  map[string]string{"url": "http://img/on-off.png"},
				"thrustersOnMuzzleOn":   map[string]string{"url": "http://img/on-on.png"},
			},
		})
	})
	mux.HandleFunc("/resize", func(w http.ResponseWriter, r *http.Request) {
		var req resizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxWidth != 128 || req.MaxHeight != 128 {
			t.Errorf("resize size = %dx%d, want 128x128", req.MaxWidth, req.MaxHeight)
		}
		items := make([]map[string]string, 0, len(req.ImageURLs))
		for _, u := range req.ImageURLs {
			items = append(items, map[string]string{"sourceUrl": u, "resizedUrl": u + "?128"})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
	})
	mux.HandleFunc("/diff-bounding-box", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(DiffResult{
			Boxes:       []DiffBox{{X: 400, Y: 100, Width: 48, Height: 48}},
			ImageWidth:  1024,
			ImageHeight: 1024,
		})
	})
	mux.HandleFunc("/name-ship", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "  Star Runner "})
	})
	mux.HandleFunc("/get-num-remaining-ships", func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get("X-Client-Ip")
		remaining := 3
		if ip == "10.0.0.9" {
			remaining = 0
		}
		json.NewEncoder(w).Encode(Quota{IP: ip, Remaining: remaining, Cap: 3})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := ServicesConfig{BaseURL: srv.URL}
	c := &Config{Services: cfg}
	c.resolve()
	return srv, c.Services
}

func TestAssetGenerateShip(t *testing.T) {
	_, cfg := fakeAssetServer(t)
	a := NewAssetService(cfg)

	res, err := a.GenerateShip(context.Background(), "a red fighter")
	if err != nil {
		t.Fatalf("GenerateShip: %v", err)
	}
	if res.ImageURL != "http://img/on-off.png" {
		t.Errorf("image = %q", res.ImageURL)
	}
	if res.Sprites.Count() != 1 {
		t.Errorf("sprites = %v", res.Sprites)
	}
}

func TestAssetGenerateShipErrors(t *testing.T) {
	_, cfg := fakeAssetServer(t)
	a := NewAssetService(cfg)

	_, err := a.GenerateShip(context.Background(), "forbidden")
	if err == nil || err.Error() != "prompt rejected" {
		t.Errorf("err = %v, want the service message", err)
	}
	_, err = a.GenerateShip(context.Background(), "broken")
	if err == nil || err.Error() != "generation failed (status 500)" {
		t.Errorf("err = %v, want status fallback", err)
	}
}

func TestAssetResizeSprites(t *testing.T) {
	_, cfg := fakeAssetServer(t)
	a := NewAssetService(cfg)

	in := SpriteSet{ThrustOffMuzzleOff: "http://img/a.png", ThrustOnMuzzleOn: "http://img/d.png"}
	out, err := a.ResizeSprites(context.Background(), in)
	if err != nil {
		t.Fatalf("ResizeSprites: %v", err)
	}
	if out[ThrustOffMuzzleOff] != "http://img/a.png?128" || out[ThrustOnMuzzleOn] != "http://img/d.png?128" {
		t.Errorf("resized = %v", out)
	}
	if out[ThrustOffMuzzleOn] != "" {
		t.Error("missing variants should stay empty")
	}
}

func TestBulletOriginsFromDiff(t *testing.T) {
	origins := bulletOriginsFromDiff(DiffResult{
		Boxes:       []DiffBox{{X: 400, Y: 100, Width: 48, Height: 48}},
		ImageWidth:  1024,
		ImageHeight: 1024,
	})
	if len(origins) != 1 {
		t.Fatalf("got %d origins, want 1", len(origins))
	}
	if !approx(origins[0].X, -11) || !approx(origins[0].Y, -28.5) {
		t.Errorf("origin = %v, want (-11, -28.5)", origins[0])
	}

	if got := bulletOriginsFromDiff(DiffResult{Boxes: []DiffBox{{}}}); got != nil {
		t.Errorf("zero-size image should give no origins, got %v", got)
	}
}

func TestAssetBulletOriginsNeedsBothVariants(t *testing.T) {
	_, cfg := fakeAssetServer(t)
	a := NewAssetService(cfg)

	origins, err := a.BulletOrigins(context.Background(), SpriteSet{ThrustOnMuzzleOff: "x"})
	if err != nil || origins != nil {
		t.Errorf("origins = %v, err = %v; want nothing without a muzzle variant", origins, err)
	}
	origins, err = a.BulletOrigins(context.Background(), SpriteSet{ThrustOnMuzzleOff: "x", ThrustOnMuzzleOn: "y"})
	if err != nil || len(origins) != 1 {
		t.Errorf("origins = %v, err = %v", origins, err)
	}
}

func TestAssetNameAndQuota(t *testing.T) {
	_, cfg := fakeAssetServer(t)
	a := NewAssetService(cfg)

	name, err := a.NameShip(context.Background(), "anything")
	if err != nil || name != "Star Runner" {
		t.Errorf("name = %q, err = %v", name, err)
	}

	q, err := a.RemainingShips(context.Background(), "10.0.0.9")
	if err != nil {
		t.Fatal(err)
	}
	if q.IP != "10.0.0.9" || q.Remaining != 0 {
		t.Errorf("quota = %+v", q)
	}
}
