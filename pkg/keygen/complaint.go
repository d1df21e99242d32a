package keygen

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Caqil/gennaro-dkg/internal/math"
)

type verdict int

const (
	verdictDismissed verdict = iota
	verdictUpheld
	verdictUnanswered
)

// resolution is the outcome of one complaint
type resolution struct {
	complaint  Complaint
	verdict    verdict
	disclosure Disclosure
}

// indexDisclosures maps accused -> accuser -> disclosure. Our own
// disclosures come from state; broadcasts whose sender does not match their
// key are dropped, as are disclosures that answer no accepted complaint.
func (p *Participant) indexDisclosures(complaints []Complaint, own []Disclosure, msgs map[uint32]*Round4Broadcast) map[uint32]map[uint32]Disclosure {
	const round = RoundComplaintResolution

	filed := make(map[complaintKey]bool, len(complaints))
	for _, c := range complaints {
		filed[c.key()] = true
	}

	index := make(map[uint32]map[uint32]Disclosure)
	add := func(accused uint32, d Disclosure) {
		if d.Share == nil {
			return
		}
		if index[accused] == nil {
			index[accused] = make(map[uint32]Disclosure)
		}
		index[accused][d.Accuser] = d
	}

	for _, d := range own {
		add(p.id, d)
	}
	for _, id := range p.others() {
		msg := msgs[id]
		if msg == nil {
			continue
		}
		if msg.Sender != id {
			p.audit.record(round, EventSenderMismatch, id, 0, fmt.Sprintf("disclosures claim sender %d", msg.Sender))
			continue
		}
		for _, d := range msg.Disclosures {
			if !filed[complaintKey{accuser: d.Accuser, accused: id}] {
				p.audit.record(round, EventDisclosureUnsolicited, id, d.Accuser, "no complaint filed in round3_share_verification")
				continue
			}
			add(id, d)
		}
	}
	return index
}

// resolveComplaints re-verifies every disclosed share against the accused
// dealer's public commitments. Verification runs on a bounded pool of
// workers; results are written under one lock and returned in complaint
// order so that every participant applies them identically.
func (p *Participant) resolveComplaints(complaints []Complaint, index map[uint32]map[uint32]Disclosure) []resolution {
	results := make([]resolution, len(complaints))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, runtime.GOMAXPROCS(0))
	)
	for i, c := range complaints {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, c Complaint) {
			defer wg.Done()
			defer func() { <-sem }()

			r := resolution{complaint: c, verdict: verdictUnanswered}
			if d, ok := index[c.Accused][c.Accuser]; ok {
				r.disclosure = d
				r.verdict = verdictUpheld
				if p.verifyDisclosure(c, d) {
					r.verdict = verdictDismissed
				}
			}

			mu.Lock()
			results[i] = r
			mu.Unlock()
		}(i, c)
	}
	wg.Wait()

	return results
}

func (p *Participant) verifyDisclosure(c Complaint, d Disclosure) bool {
	if p.params.Scheme == SchemePedersen && d.Blind == nil {
		return false
	}
	return p.verifyShare(c.Accused, c.Accuser, d.Share, d.Blind)
}

// applyResolutions excludes dealers whose complaints stand and adopts
// disclosed shares for complaints we filed ourselves
func (p *Participant) applyResolutions(results []resolution) {
	const round = RoundComplaintResolution

	for _, r := range results {
		c := r.complaint
		rec := p.peers[c.Accused]

		switch r.verdict {
		case verdictDismissed:
			p.audit.record(round, EventComplaintDismissed, c.Accused, c.Accuser, "disclosed share verifies")
			if c.Accuser == p.id && !rec.excluded() {
				p.adoptDisclosure(rec, r.disclosure)
				p.audit.record(round, EventShareReplaced, c.Accused, c.Accuser, "disclosed share adopted")
			}
		case verdictUpheld:
			p.excludeForComplaint(rec, c, EventComplaintUpheld, "disclosed share does not verify")
		case verdictUnanswered:
			p.excludeForComplaint(rec, c, EventComplaintUnanswered, "no disclosure")
		}
	}
}

func (p *Participant) excludeForComplaint(rec *peerRecord, c Complaint, event AuditEvent, detail string) {
	const round = RoundComplaintResolution
	if rec.excluded() {
		p.audit.record(round, event, c.Accused, c.Accuser, detail)
		return
	}
	p.exclude(round, c.Accused, event, fmt.Sprintf("accuser %d: %s", c.Accuser, detail))
}

func (p *Participant) adoptDisclosure(rec *peerRecord, d Disclosure) {
	rec.Zeroize()
	rec.share = &math.Share{ID: p.id, Value: p.group.NewScalar().Set(d.Share)}
	if d.Blind != nil {
		rec.blind = &math.Share{ID: p.id, Value: p.group.NewScalar().Set(d.Blind)}
	}
	rec.status = peerActive
}

// applyQuorum excludes dealers accused by at least the complaint quorum
// when the DismissBelowQuorum policy is in force
func (p *Participant) applyQuorum(complaints []Complaint) {
	if p.params.Dismissal != DismissBelowQuorum {
		return
	}
	accusers := make(map[uint32]map[uint32]struct{})
	for _, c := range complaints {
		if accusers[c.Accused] == nil {
			accusers[c.Accused] = make(map[uint32]struct{})
		}
		accusers[c.Accused][c.Accuser] = struct{}{}
	}

	quorum := p.params.Quorum()
	for _, id := range p.params.Participants {
		if n := len(accusers[id]); n >= quorum {
			p.exclude(RoundComplaintResolution, id, EventComplaintQuorum,
				fmt.Sprintf("%d accusers, quorum %d", n, quorum))
		}
	}
}
