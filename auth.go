package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenSecretKey = "token_secret"

// TokenIssuer signs resume tokens that bind a connection to an entity id, so
// a client that drops briefly can reclaim its ship before it expires
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. The secret comes from config when
// set, then from the database, and is generated (and persisted) otherwise.
func NewTokenIssuer(secret string, db *DB, ttl time.Duration) *TokenIssuer {
	t := &TokenIssuer{ttl: ttl, now: time.Now}
	if secret != "" {
		t.secret = []byte(secret)
	} else {
		t.secret = loadOrCreateSecret(db)
	}
	if t.ttl <= 0 {
		t.ttl = time.Minute
	}
	return t
}

// loadOrCreateSecret loads the signing secret from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB) []byte {
	if db != nil {
		if h := db.GetSetting(tokenSecretKey); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate token secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting(tokenSecretKey, hex.EncodeToString(secret)); err != nil {
			log.Printf("[auth] could not persist token secret: %v", err)
		}
	}
	return secret
}

// Issue returns a signed token for an entity id
func (t *TokenIssuer) Issue(id string) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"eid": id,
		"exp": now.Add(t.ttl).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate verifies a token and returns the entity id it binds
func (t *TokenIssuer) Validate(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", fmt.Errorf("resume token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("resume token: invalid")
	}
	id, ok := claims["eid"].(string)
	if !ok || id == "" {
		return "", errors.New("resume token: missing entity id")
	}
	return id, nil
}
