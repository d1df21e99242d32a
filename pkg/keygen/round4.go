package keygen

import (
	"cmp"
	"fmt"
	"slices"
)

// Round4 gathers every complaint filed in round 3 and answers the ones
// against this participant by disclosing the disputed share.
// Round3_ShareVerification -> Round4_ComplaintResolution.
func (p *Participant) Round4(complaints map[uint32]*Round3Broadcast) (*Round4Broadcast, error) {
	s, err := expect[*round3State](p, RoundShareVerification)
	if err != nil {
		return nil, err
	}
	const round = RoundShareVerification

	auditUnknown(p, round, complaints)

	// our own complaints come from state; the echoed broadcast is ignored
	all := make(map[complaintKey]Complaint)
	for _, c := range s.complaints {
		all[c.key()] = c
	}
	for _, id := range p.others() {
		msg := complaints[id]
		if msg == nil {
			continue
		}
		if msg.Sender != id {
			p.audit.record(round, EventSenderMismatch, id, 0, fmt.Sprintf("complaints claim sender %d", msg.Sender))
			continue
		}
		for _, c := range msg.Complaints {
			if ok, why := p.admissible(id, c); !ok {
				p.audit.record(round, EventComplaintIgnored, c.Accused, c.Accuser, why)
				continue
			}
			all[c.key()] = c
		}
	}

	accepted := sortComplaints(all)
	for _, c := range accepted {
		p.audit.record(round, EventComplaintFiled, c.Accused, c.Accuser, string(c.Reason))
	}

	disclosures := p.disclose(s.dealing, accepted)

	p.state = &round4State{
		dealing:     s.dealing,
		complaints:  accepted,
		disclosures: disclosures,
	}
	p.log.DebugEvent().
		Int("complaints", len(accepted)).
		Int("disclosures", len(disclosures)).
		Msg("round 4 complete")

	return &Round4Broadcast{Sender: p.id, Disclosures: cloneDisclosures(p, disclosures)}, nil
}

// admissible reports whether a complaint broadcast by sender can be acted
// upon. Complaints must be attributable to their sender and may only target
// dealers that are still in the set; complaints from excluded participants
// are dropped because nobody dealt them a share.
func (p *Participant) admissible(sender uint32, c Complaint) (bool, string) {
	switch {
	case c.Accuser != sender:
		return false, fmt.Sprintf("filed by %d under sender %d", c.Accuser, sender)
	case c.Round != RoundShareVerification:
		return false, fmt.Sprintf("filed for %s", c.Round)
	case c.Accused == c.Accuser:
		return false, "self accusation"
	case !p.isMember(c.Accused):
		return false, "accused not in roster"
	case p.peers[sender].excluded():
		return false, "accuser excluded"
	case p.peers[c.Accused].excluded():
		return false, "accused already excluded"
	}
	return true, ""
}

// disclose reveals the shares dealt to everyone who accused this participant
func (p *Participant) disclose(d *dealing, complaints []Complaint) []Disclosure {
	var out []Disclosure
	for _, c := range complaints {
		if c.Accused != p.id {
			continue
		}
		disc := Disclosure{Accuser: c.Accuser, Share: d.poly.EvaluateAt(c.Accuser)}
		if d.blind != nil {
			disc.Blind = d.blind.EvaluateAt(c.Accuser)
		}
		out = append(out, disc)
		p.log.InfoEvent().Uint32("accuser", c.Accuser).Msg("disclosing disputed share")
	}
	return out
}

func sortComplaints(set map[complaintKey]Complaint) []Complaint {
	out := make([]Complaint, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Complaint) int {
		if a.Accused != b.Accused {
			return cmp.Compare(a.Accused, b.Accused)
		}
		return cmp.Compare(a.Accuser, b.Accuser)
	})
	return out
}

// cloneDisclosures copies disclosed scalars so that the broadcast does not
// alias state that Finalize wipes
func cloneDisclosures(p *Participant, in []Disclosure) []Disclosure {
	out := make([]Disclosure, len(in))
	for i, d := range in {
		out[i] = Disclosure{Accuser: d.Accuser, Share: p.group.NewScalar().Set(d.Share)}
		if d.Blind != nil {
			out[i].Blind = p.group.NewScalar().Set(d.Blind)
		}
	}
	return out
}
