package database

import (
	"testing"
	"time"
)

func TestShareLinkExpired(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	t.Run("no expiry never expires", func(t *testing.T) {
		l := &ShareLink{}
		if l.Expired(now) {
			t.Error("link without expires_at reported expired")
		}
	})

	t.Run("past expiry", func(t *testing.T) {
		past := now.Add(-time.Second)
		l := &ShareLink{ExpiresAt: &past}
		if !l.Expired(now) {
			t.Error("expected expired")
		}
	})

	t.Run("exact expiry instant is not expired", func(t *testing.T) {
		l := &ShareLink{ExpiresAt: &now}
		if l.Expired(now) {
			t.Error("link at exact expiry instant reported expired")
		}
	})
}

func TestShareLinkLimitExhausted(t *testing.T) {
	t.Run("no limit", func(t *testing.T) {
		l := &ShareLink{DownloadCount: 1000000}
		if l.LimitExhausted() {
			t.Error("link without limit reported exhausted")
		}
	})

	t.Run("below limit", func(t *testing.T) {
		limit := 5
		l := &ShareLink{DownloadLimit: &limit, DownloadCount: 4}
		if l.LimitExhausted() {
			t.Error("expected headroom")
		}
	})

	t.Run("at limit", func(t *testing.T) {
		limit := 5
		l := &ShareLink{DownloadLimit: &limit, DownloadCount: 5}
		if !l.LimitExhausted() {
			t.Error("expected exhausted")
		}
	})
}
