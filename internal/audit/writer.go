package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Writer appends audit events to persistent storage.
//
// Implementations must set the hash chain (HashPrev, Hash) before
// writing, sync to disk before returning, and return an error on any
// failure: an operation whose audit record cannot be written must fail.
type Writer interface {
	Write(event *Event) error
	Close() error
}

// NopWriter discards all events. Used when audit logging is disabled.
type NopWriter struct{}

var _ Writer = (*NopWriter)(nil)

func (NopWriter) Write(*Event) error { return nil }
func (NopWriter) Close() error       { return nil }

// FileWriter appends JSONL events to a file, one object per line.
type FileWriter struct {
	f        *os.File
	lastHash string
}

var _ Writer = (*FileWriter)(nil)

// OpenFile opens (or creates) an audit log for appending. The tail of an
// existing log is scanned so the hash chain continues across runs.
func OpenFile(path string) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	last, err := lastHashOf(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &FileWriter{f: f, lastHash: last}, nil
}

// lastHashOf reads the final event of an existing log, if any.
func lastHashOf(f *os.File) (string, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return "", fmt.Errorf("failed to seek audit log: %w", err)
	}
	last := GenesisHash
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return "", fmt.Errorf("corrupt audit log entry: %w", err)
		}
		last = e.Hash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read audit log: %w", err)
	}
	if _, err := f.Seek(0, 2); err != nil {
		return "", fmt.Errorf("failed to seek audit log: %w", err)
	}
	return last, nil
}

func (w *FileWriter) Write(event *Event) error {
	event.HashPrev = w.lastHash
	hash, err := event.ComputeHash()
	if err != nil {
		return err
	}
	event.Hash = hash

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	if _, err := w.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	w.lastHash = hash
	return nil
}

func (w *FileWriter) Close() error {
	return w.f.Close()
}

// ReadFile loads all events from an audit log, for inspection and chain
// verification.
func ReadFile(path string) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []*Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("corrupt audit log entry: %w", err)
		}
		events = append(events, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}
