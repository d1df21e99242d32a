// Package network - Audit trail persistence for protocol and transport events
package network

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Caqil/gennaro-dkg/pkg/keygen"
)

// AuditSink appends audit records to a JSON-lines file or writer. It
// receives the keygen audit trail through Hook and transport events through
// LogTransportEvent.
type AuditSink struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	enabled  bool
	filePath string
}

// AuditRecord is one line of the audit file
type AuditRecord struct {
	Timestamp   time.Time   `json:"timestamp"`
	EventType   string      `json:"event_type"`
	SessionID   string      `json:"session_id,omitempty"`
	PartyID     uint32      `json:"party_id"`
	Round       string      `json:"round,omitempty"`
	Seq         int         `json:"seq,omitempty"`
	Subject     uint32      `json:"subject,omitempty"`
	Accuser     uint32      `json:"accuser,omitempty"`
	MessageType MessageType `json:"message_type,omitempty"`
	Detail      string      `json:"detail,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// NewAuditSink opens filePath for appending. An empty path yields a
// disabled sink.
func NewAuditSink(filePath string) (*AuditSink, error) {
	if filePath == "" {
		return &AuditSink{enabled: false}, nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &AuditSink{
		file:     file,
		encoder:  json.NewEncoder(file),
		enabled:  true,
		filePath: filePath,
	}, nil
}

// NewAuditWriter creates a sink writing to w
func NewAuditWriter(w io.Writer) *AuditSink {
	return &AuditSink{encoder: json.NewEncoder(w), enabled: true}
}

// Hook returns a keygen audit hook that records the entries of participant
// id in session sessionID
func (s *AuditSink) Hook(id uint32, sessionID []byte) keygen.AuditHook {
	session := hex.EncodeToString(sessionID)
	return func(e keygen.AuditEntry) {
		if !s.enabled {
			return
		}
		s.writeRecord(&AuditRecord{
			Timestamp: time.Now(),
			EventType: string(e.Event),
			SessionID: session,
			PartyID:   id,
			Round:     e.Round.String(),
			Seq:       e.Seq,
			Subject:   e.Subject,
			Accuser:   e.Accuser,
			Detail:    e.Detail,
		})
	}
}

// LogTransportEvent records an event about a message that never reached
// the protocol, such as an undecodable payload
func (s *AuditSink) LogTransportEvent(eventType string, id, remote uint32, t MessageType, err error) {
	if !s.enabled {
		return
	}

	rec := &AuditRecord{
		Timestamp:   time.Now(),
		EventType:   eventType,
		PartyID:     id,
		Subject:     remote,
		MessageType: t,
	}
	if err != nil {
		rec.Error = err.Error()
	}

	s.writeRecord(rec)
}

func (s *AuditSink) writeRecord(rec *AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoder == nil {
		return
	}

	if err := s.encoder.Encode(rec); err != nil {
		// Log to stderr if we can't write to audit log
		fmt.Fprintf(os.Stderr, "Failed to write audit log: %v\n", err)
	}
}

// Close closes the audit file
func (s *AuditSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.encoder = nil
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}

	return nil
}

// Rotate renames the current file with a timestamp suffix and starts a
// new one
func (s *AuditSink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file, s.encoder = nil, nil
	if err != nil {
		return err
	}

	timestamp := time.Now().Format("20060102-150405")
	oldPath := fmt.Sprintf("%s.%s", s.filePath, timestamp)

	if err := os.Rename(s.filePath, oldPath); err != nil {
		return err
	}

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	s.file = file
	s.encoder = json.NewEncoder(file)

	return nil
}
