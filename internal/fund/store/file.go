package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/zargusta/fundtracker/internal/fund"
)

const (
	historicalFile = "historical_data.json"
	summaryFile    = "fund_summary.json"
	auditFile      = "audit-log.jsonl"

	writeAttempts = 3
)

// FileStore keeps the fund in a data directory as plain JSON files.
type FileStore struct {
	dir string

	docMu   sync.Mutex
	auditMu sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}

	return &FileStore{dir: dir}, nil
}

// Load reads historical_data.json. A missing file is a fresh deployment, not an error.
func (s *FileStore) Load(_ context.Context) (*fund.State, error) {
	s.docMu.Lock()
	defer s.docMu.Unlock()

	body, err := os.ReadFile(filepath.Join(s.dir, historicalFile))
	if errors.Is(err, os.ErrNotExist) {
		return fund.NewState(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", historicalFile, err)
	}

	return decodeState(body)
}

// Save replaces historical_data.json atomically, then refreshes fund_summary.json.
// Only the first write decides whether the mutation is durable.
func (s *FileStore) Save(_ context.Context, state *fund.State, summary *fund.Summary) error {
	body, err := encodeState(state)
	if err != nil {
		return err
	}

	summaryBody, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	s.docMu.Lock()
	defer s.docMu.Unlock()

	if err := writeFileAtomic(filepath.Join(s.dir, historicalFile), body); err != nil {
		return fmt.Errorf("writing %s: %w", historicalFile, err)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, summaryFile), summaryBody); err != nil {
		return fmt.Errorf("writing %s: %w", summaryFile, err)
	}

	return nil
}

func (s *FileStore) AppendAudit(_ context.Context, entry fund.AuditEntry) error {
	line, err := encodeAudit(entry)
	if err != nil {
		return err
	}

	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	return withRetry(func() error {
		return appendLine(filepath.Join(s.dir, auditFile), line)
	})
}

// ReadAudit returns up to limit of the newest audit lines, newest first.
func (s *FileStore) ReadAudit(_ context.Context, limit int) ([]fund.AuditEntry, error) {
	s.auditMu.Lock()
	body, err := os.ReadFile(filepath.Join(s.dir, auditFile))
	s.auditMu.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", auditFile, err)
	}

	var lines [][]byte

	for line := range bytes.SplitSeq(bytes.TrimSpace(body), []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}
	}

	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	slices.Reverse(lines)

	entries := make([]fund.AuditEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, decodeAudit(line))
	}

	return entries, nil
}

func withRetry(fn func() error) error {
	var lastErr error

	for attempt := range writeAttempts {
		if attempt > 0 {
			time.Sleep(time.Duration(100<<(attempt-1)) * time.Millisecond)
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("after %d attempts: %w", writeAttempts, lastErr)
}

func writeFileAtomic(path string, content []byte) error {
	return withRetry(func() error { return writeFileAtomicOnce(path, content) })
}

func writeFileAtomicOnce(path string, content []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	committed = true

	return nil
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("writing to %s: %w", path, err)
	}

	return f.Sync()
}
