package amqp

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage signals that a user's transaction log was mutated and
// their achievements should be re-evaluated. It carries only the user id; the
// worker reads a fresh snapshot of the ledger itself.
type LedgerChangedMessage struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage creates a change message for a user.
func NewLedgerChangedMessage(userID string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON creates a message from JSON bytes.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AchievementEarnedMessage is the "newly earned" notification published once
// per achievement per evaluation call.
type AchievementEarnedMessage struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	DateEarned string    `json:"date_earned"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewAchievementEarnedMessage creates an earned notification.
func NewAchievementEarnedMessage(userID, name, dateEarned string) *AchievementEarnedMessage {
	return &AchievementEarnedMessage{
		UserID:     userID,
		Name:       name,
		DateEarned: dateEarned,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *AchievementEarnedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AchievementEarnedMessageFromJSON creates a message from JSON bytes.
func AchievementEarnedMessageFromJSON(data []byte) (*AchievementEarnedMessage, error) {
	var msg AchievementEarnedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
