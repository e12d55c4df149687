package main

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

func newUpgrader(cfg ServerConfig) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg),
	}
}

// originChecker accepts the serving host, the public URL's host and any
// configured origin. Non-browser clients send no Origin and are let through.
func originChecker(cfg ServerConfig) func(*http.Request) bool {
	allowed := make(map[string]bool)
	allowAll := false
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			allowed[strings.ToLower(u.Host)] = true
		} else {
			allowed[strings.ToLower(o)] = true
		}
	}
	if u, err := url.Parse(cfg.PublicURL); err == nil && u.Host != "" {
		allowed[strings.ToLower(u.Host)] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(u.Host)
		return host == strings.ToLower(r.Host) || allowed[host]
	}
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, cfg ServerConfig) *http.ServeMux {
	mux := http.NewServeMux()
	upgrader := newUpgrader(cfg)

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		id := resumeID(hub, r.URL.Query().Get("token"))
		if id == "" {
			id = GenerateID()
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[hub] upgrade error: %v", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, id, ip, r.URL.Query().Get("codec"))
		if !hub.join(client) {
			client.cancel()
			hub.TrackDisconnect(ip)
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()

		token := ""
		if hub.tokens != nil {
			if token, err = hub.tokens.Issue(id); err != nil {
				log.Printf("[hub] token error for %s: %v", id, err)
			}
		}
		client.Welcome(token)
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"running":     hub.game.Running(),
			"ships":       hub.game.ShipCount(),
			"projectiles": hub.game.ProjectileCount(),
			"clients":     hub.ClientCount(),
			"tick":        hub.game.Tick(),
		})
	})

	// Join link as a QR code so phones can pick up the analog stick client
	mux.HandleFunc("/qr", func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(joinURL(cfg, r), qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "qr encode failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	})

	mux.HandleFunc("/protocol/schema.json", func(w http.ResponseWriter, r *http.Request) {
		data, err := protocolSchemaJSON()
		if err != nil {
			http.Error(w, "schema unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Write(data)
	})

	mux.HandleFunc("/scores.csv", func(w http.ResponseWriter, r *http.Request) {
		if hub.scoreboard == nil {
			http.Error(w, "scoreboard disabled", http.StatusNotFound)
			return
		}
		list, err := hub.scoreboard.Local()
		if err != nil {
			log.Printf("[scoreboard] export: %v", err)
			http.Error(w, "database error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="scores.csv"`)
		if err := gocsv.Marshal(&list.Items, w); err != nil {
			log.Printf("[scoreboard] csv: %v", err)
		}
	})

	return mux
}

// resumeID returns the entity id bound to a valid resume token, or ""
func resumeID(hub *Hub, token string) string {
	if token == "" || hub.tokens == nil {
		return ""
	}
	id, err := hub.tokens.Validate(token)
	if err != nil {
		log.Printf("[hub] rejected resume token: %v", err)
		return ""
	}
	return id
}

// joinURL is the configured public URL, or the URL the request came in on
func joinURL(cfg ServerConfig, r *http.Request) string {
	if cfg.PublicURL != "" {
		return cfg.PublicURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode: %v", err)
	}
}
