package main

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", nil, time.Minute)
	token, err := issuer.Issue("entity-1")
	if err != nil {
		t.Fatal(err)
	}
	id, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id != "entity-1" {
		t.Errorf("id = %q, want entity-1", id)
	}
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	token, _ := NewTokenIssuer("one", nil, time.Minute).Issue("entity-1")
	if _, err := NewTokenIssuer("two", nil, time.Minute).Validate(token); err == nil {
		t.Error("token signed with another secret should fail")
	}
	if _, err := NewTokenIssuer("one", nil, time.Minute).Validate("garbage"); err == nil {
		t.Error("garbage token should fail")
	}
}

func TestTokenExpires(t *testing.T) {
	issuer := NewTokenIssuer("secret", nil, time.Minute)
	now := time.Now()
	issuer.now = func() time.Time { return now }
	token, _ := issuer.Issue("entity-1")

	issuer.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := issuer.Validate(token); err == nil {
		t.Error("expired token should fail")
	}
}

func TestTokenSecretPersisted(t *testing.T) {
	db := openTestDB(t)
	first := NewTokenIssuer("", db, time.Minute)
	token, _ := first.Issue("entity-1")

	// A restart with the same database accepts old tokens
	second := NewTokenIssuer("", db, time.Minute)
	if id, err := second.Validate(token); err != nil || id != "entity-1" {
		t.Errorf("Validate after restart = %q, %v", id, err)
	}
}
