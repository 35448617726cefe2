package workflow

import (
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// ledgerResolution is the finest timestamp resolution every store keeps.
// BSON datetimes hold milliseconds.
const ledgerResolution = time.Millisecond

// appendEntry appends the next negotiation entry to the proposal's ledger.
// The sequence number and timestamp are assigned here so that they are
// gap-free and strictly increasing regardless of the clock.
func appendEntry(p *models.MechanicProposal, typ models.NegotiationType, byUserID, byName string, amount float64, comments string, now time.Time) models.NegotiationEntry {
	ts := now.UTC().Truncate(ledgerResolution)
	seq := 1
	if last, ok := lastEntry(p); ok {
		seq = last.SequenceNumber + 1
		if !ts.After(last.NegotiatedDate) {
			ts = last.NegotiatedDate.Add(ledgerResolution)
		}
	}
	entry := models.NegotiationEntry{
		SequenceNumber:     seq,
		NegotiationType:    typ,
		NegotiatedBy:       byName,
		NegotiatedByUserID: byUserID,
		NegotiatedAmount:   amount,
		Comments:           comments,
		NegotiatedDate:     ts,
	}
	p.Entries = append(p.Entries, entry)
	return entry
}

func lastEntry(p *models.MechanicProposal) (models.NegotiationEntry, bool) {
	if len(p.Entries) == 0 {
		return models.NegotiationEntry{}, false
	}
	return p.Entries[len(p.Entries)-1], true
}

// hasInitial reports whether the mechanic's opening offer is on the ledger.
func hasInitial(p *models.MechanicProposal) bool {
	return len(p.Entries) > 0 && p.Entries[0].NegotiationType == models.NegotiationInitial
}

// VerifyLedger checks the ledger invariants of one proposal: sequence numbers
// are exactly 1..k, dates strictly increase, and only the first entry is
// Initial.
func VerifyLedger(p *models.MechanicProposal) error {
	for i, e := range p.Entries {
		if e.SequenceNumber != i+1 {
			return fmt.Errorf("proposal %s: entry %d has sequence number %d", p.ID, i+1, e.SequenceNumber)
		}
		if (i == 0) != (e.NegotiationType == models.NegotiationInitial) {
			return fmt.Errorf("proposal %s: entry %d has type %s", p.ID, e.SequenceNumber, e.NegotiationType)
		}
		if i > 0 && !e.NegotiatedDate.After(p.Entries[i-1].NegotiatedDate) {
			return fmt.Errorf("proposal %s: entry %d is not after entry %d", p.ID, e.SequenceNumber, i)
		}
	}
	return nil
}
