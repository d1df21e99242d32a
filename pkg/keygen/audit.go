package keygen

import "fmt"

// AuditEvent is the kind of an audit entry
type AuditEvent string

const (
	EventCommitmentMissing     AuditEvent = "commitment_missing"
	EventCommitmentInvalid     AuditEvent = "commitment_invalid"
	EventProofInvalid          AuditEvent = "proof_invalid"
	EventDecommitMissing       AuditEvent = "decommitment_missing"
	EventDecommitInvalid       AuditEvent = "decommitment_invalid"
	EventSenderMismatch        AuditEvent = "sender_mismatch"
	EventUnknownSender         AuditEvent = "unknown_sender"
	EventShareMissing          AuditEvent = "share_missing"
	EventShareInvalid          AuditEvent = "share_invalid"
	EventComplaintFiled        AuditEvent = "complaint_filed"
	EventComplaintIgnored      AuditEvent = "complaint_ignored"
	EventComplaintDismissed    AuditEvent = "complaint_dismissed"
	EventComplaintUpheld       AuditEvent = "complaint_upheld"
	EventComplaintUnanswered   AuditEvent = "complaint_unanswered"
	EventComplaintQuorum       AuditEvent = "complaint_quorum"
	EventShareReplaced         AuditEvent = "share_replaced"
	EventDisclosureUnsolicited AuditEvent = "disclosure_unsolicited"
	EventExcluded              AuditEvent = "excluded"
	EventKeyFinalized          AuditEvent = "key_finalized"
	EventKeyConfirmed          AuditEvent = "key_confirmed"
	EventKeyMismatch           AuditEvent = "key_mismatch"
	EventConfirmationMissing   AuditEvent = "confirmation_missing"
	EventAborted               AuditEvent = "aborted"
)

// AuditEntry records one protocol decision. Subject is the participant the
// decision is about; Accuser is set for complaint events.
type AuditEntry struct {
	Seq     int
	Round   Round
	Event   AuditEvent
	Subject uint32
	Accuser uint32
	Detail  string
}

func (e AuditEntry) String() string {
	if e.Accuser != 0 {
		return fmt.Sprintf("#%d %s %s subject=%d accuser=%d %s", e.Seq, e.Round, e.Event, e.Subject, e.Accuser, e.Detail)
	}
	return fmt.Sprintf("#%d %s %s subject=%d %s", e.Seq, e.Round, e.Event, e.Subject, e.Detail)
}

// AuditHook receives every entry as it is recorded
type AuditHook func(AuditEntry)

// auditLog is append-only; entries are numbered in recording order
type auditLog struct {
	entries []AuditEntry
	hook    AuditHook
}

func (l *auditLog) record(round Round, event AuditEvent, subject, accuser uint32, detail string) {
	entry := AuditEntry{
		Seq:     len(l.entries) + 1,
		Round:   round,
		Event:   event,
		Subject: subject,
		Accuser: accuser,
		Detail:  detail,
	}
	l.entries = append(l.entries, entry)
	if l.hook != nil {
		l.hook(entry)
	}
}

func (l *auditLog) snapshot() []AuditEntry {
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
