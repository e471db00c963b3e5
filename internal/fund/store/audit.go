package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/zargusta/fundtracker/internal/fund"
)

const auditTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// encodeAudit flattens an entry into one JSON object: {timestamp, action, ...fields}.
func encodeAudit(e fund.AuditEntry) ([]byte, error) {
	obj := maps.Clone(e.Fields)
	if obj == nil {
		obj = make(map[string]any, 2)
	}

	obj["timestamp"] = e.Timestamp.UTC().Format(auditTimeLayout)
	obj["action"] = e.Action

	line, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encoding audit entry %s: %w", e.Action, err)
	}

	return line, nil
}

// decodeAudit never fails: a line that is not a JSON object comes back as {raw: line}.
func decodeAudit(line []byte) fund.AuditEntry {
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil || obj == nil {
		return fund.AuditEntry{Fields: map[string]any{"raw": string(line)}}
	}

	var e fund.AuditEntry

	if ts, ok := obj["timestamp"].(string); ok {
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	}

	e.Action, _ = obj["action"].(string)

	delete(obj, "timestamp")
	delete(obj, "action")

	e.Fields = obj

	return e
}
