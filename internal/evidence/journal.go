package evidence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	journalFileMode = 0644
	journalDirMode  = 0755
)

// Sink receives evidence records.
type Sink interface {
	SendEvidence(ctx context.Context, ev Event) error
}

// Journal appends evidence records to <workspace>/state/evidence.jsonl.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal creates an append-only evidence journal rooted at workspace state.
func NewJournal(workspace string) *Journal {
	return &Journal{
		path: filepath.Join(workspace, "state", "evidence.jsonl"),
	}
}

// Path returns the journal file location.
func (j *Journal) Path() string { return j.path }

// SendEvidence writes one event as one JSONL line.
func (j *Journal) SendEvidence(_ context.Context, ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), journalDirMode); err != nil {
		return fmt.Errorf("create evidence dir: %w", err)
	}

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, journalFileMode)
	if err != nil {
		return fmt.Errorf("open evidence journal: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal evidence event: %w", err)
	}
	encoded = append(encoded, '\n')

	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("append evidence event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync evidence journal: %w", err)
	}
	return nil
}

// ReadAll returns the journal records with the given intent id, or every
// record when intentID is empty.
func (j *Journal) ReadAll(intentID string) ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open evidence journal: %w", err)
	}
	defer file.Close()

	var out []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if intentID == "" || ev.IntentID == intentID {
			out = append(out, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan evidence journal: %w", err)
	}
	return out, nil
}
