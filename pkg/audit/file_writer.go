package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// FileWriter appends chained events to a JSONL file, syncing after
// every event.
type FileWriter struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	chain chain
}

var _ Writer = (*FileWriter)(nil)

// NewFileWriter opens path for appending. An existing log continues its
// chain from the last recorded hash.
func NewFileWriter(path string) (*FileWriter, error) {
	last := GenesisHash
	if data, err := os.ReadFile(path); err == nil && len(bytes.TrimSpace(data)) > 0 {
		if last, err = readLastHash(data); err != nil {
			return nil, fmt.Errorf("failed to read last hash from existing log: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &FileWriter{file: f, path: path, chain: chain{last: last}}, nil
}

func readLastHash(data []byte) (string, error) {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	var event struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(lines[len(lines)-1], &event); err != nil {
		return "", fmt.Errorf("failed to parse last event: %w", err)
	}
	if event.Hash == "" {
		return "", fmt.Errorf("last event has no hash")
	}
	return event.Hash, nil
}

// Write logs an event.
func (w *FileWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("audit log %s is closed", w.path)
	}
	line, err := w.chain.link(event)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	w.chain.commit(event)
	return nil
}

// Close closes the log file. Closing twice is a no-op.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LastHash returns the hash of the last written event.
func (w *FileWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chain.lastHash()
}

// Path returns the log file path.
func (w *FileWriter) Path() string { return w.path }

func jsonLine(event *Event) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// VerifyChain checks the hash chain of the log file at path and returns
// the number of valid events.
func VerifyChain(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer f.Close()
	return VerifyReader(f)
}

// VerifyReader checks the hash chain of a JSONL stream. Blank lines are
// ignored. On failure the count of events verified so far is returned.
func VerifyReader(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	prev := GenesisHash
	n, lineNum := 0, 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return n, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if event.HashPrev != prev {
			return n, fmt.Errorf("line %d: hash chain broken: expected prev=%s, got prev=%s", lineNum, prev, event.HashPrev)
		}
		canonical, err := event.CanonicalJSON()
		if err != nil {
			return n, fmt.Errorf("line %d: failed to serialize: %w", lineNum, err)
		}
		if want := calculateHash(canonical, event.HashPrev); event.Hash != want {
			return n, fmt.Errorf("line %d: hash mismatch: expected=%s, got=%s", lineNum, want, event.Hash)
		}
		prev = event.Hash
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("scan error: %w", err)
	}
	return n, nil
}
