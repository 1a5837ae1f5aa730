package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{40, 30 * time.Second}, // shift overflow also capped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection closed", errors.New("Exception (504) Reason: \"connection closed\""), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"closed message channel", errors.New("message channel closed"), true},
		{"application error", errors.New("evaluate achievements: boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestLedgerChangedMessage_RoundTrip(t *testing.T) {
	msg := NewLedgerChangedMessage("user-1")

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}

	decoded, err := LedgerChangedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error: %v", err)
	}
	if decoded.UserID != "user-1" {
		t.Errorf("decoded user id = %q, want %q", decoded.UserID, "user-1")
	}
}

func TestAchievementEarnedMessage_RoundTrip(t *testing.T) {
	msg := NewAchievementEarnedMessage("user-1", "First Steps", "2024-01-15")

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}

	decoded, err := AchievementEarnedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error: %v", err)
	}
	if decoded.Name != "First Steps" || decoded.DateEarned != "2024-01-15" {
		t.Errorf("decoded message = %+v", decoded)
	}

	if _, err := AchievementEarnedMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("FromJSON() accepted malformed payload")
	}
}
