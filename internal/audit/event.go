// Package audit provides an append-only audit trail for CA operations.
//
// Audit records are JSON lines with SHA-256 hash chaining for tamper
// evidence. Key principles, in order:
//   - Audit failure = operation failure
//   - Never log secrets (private keys, passphrases)
//   - All timestamps in UTC
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes audit events.
type EventType string

const (
	EventCertIssued  EventType = "CERT_ISSUED"
	EventCertRevoked EventType = "CERT_REVOKED"
	EventCRLUpdated  EventType = "CRL_UPDATED"
	EventDHGenerated EventType = "DH_GENERATED"
	EventAuthFailed  EventType = "AUTH_FAILED"
)

// Result is the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// GenesisHash seeds the hash chain before any event exists.
const GenesisHash = "sha256:genesis"

// Actor records who performed the action.
type Actor struct {
	Type string `json:"type"` // "user" or "system"
	ID   string `json:"id"`
	Host string `json:"host,omitempty"`
}

// Object records what was acted upon.
type Object struct {
	Type    string `json:"type"` // "certificate", "crl", "dhparams"
	Serial  string `json:"serial,omitempty"`
	Subject string `json:"subject,omitempty"`
	Issuer  string `json:"issuer,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Event is a single audit record.
type Event struct {
	ID        string    `json:"id"`
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"` // RFC3339 UTC
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Detail    string    `json:"detail,omitempty"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"`
	Hash      string    `json:"hash"`
}

// NewEvent builds an event with a fresh UUID, the current UTC time and
// the invoking user as actor. The hash fields are set by the writer.
func NewEvent(typ EventType, obj Object, result Result) *Event {
	host, _ := os.Hostname()
	actor := Actor{Type: "user", ID: os.Getenv("USER"), Host: host}
	if actor.ID == "" {
		actor.Type = "system"
		actor.ID = "twoca"
	}
	return &Event{
		ID:        uuid.NewString(),
		EventType: typ,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor:     actor,
		Object:    obj,
		Result:    result,
	}
}

// ComputeHash returns the chained hash of the event: SHA-256 over the
// JSON encoding of the event with its Hash field cleared. HashPrev must
// already be set.
func (e *Event) ComputeHash() (string, error) {
	clone := *e
	clone.Hash = ""
	data, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit event: %w", err)
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Verify checks the integrity of an event chain: each event's HashPrev
// must equal the previous event's Hash, and each Hash must recompute.
func Verify(events []*Event) error {
	prev := GenesisHash
	for i, e := range events {
		if e.HashPrev != prev {
			return fmt.Errorf("event %d: hash chain broken", i)
		}
		want, err := e.ComputeHash()
		if err != nil {
			return err
		}
		if e.Hash != want {
			return fmt.Errorf("event %d: hash mismatch", i)
		}
		prev = e.Hash
	}
	return nil
}
