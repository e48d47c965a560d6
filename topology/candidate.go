package topology

import (
	"fmt"
	"strings"
)

// Candidate is a proposed, not-yet-deployed Topology, together with an audit
// trail explaining the placement decisions which produced it.
type Candidate struct {
	Name     string
	Topology *Topology
	// RemovedAdmins are admins which the operation producing the Candidate
	// determined should be dropped. Applying this to Parameters is the
	// responsibility of the caller.
	RemovedAdmins []AdminID

	audit []string
}

// NewCandidate returns a Candidate wrapping |topo|.
func NewCandidate(name string, topo *Topology) *Candidate {
	return &Candidate{Name: name, Topology: topo}
}

// Audit appends a formatted entry to the audit trail.
func (c *Candidate) Audit(format string, args ...interface{}) {
	c.audit = append(c.audit, fmt.Sprintf(format, args...))
}

// AuditLog returns entries of the audit trail.
func (c *Candidate) AuditLog() []string { return append([]string(nil), c.audit...) }

// ShowAudit renders the audit trail for display.
func (c *Candidate) ShowAudit() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Audit of candidate %s:\n", c.Name)
	for i, e := range c.audit {
		fmt.Fprintf(&b, "%4d. %s\n", i+1, e)
	}
	return b.String()
}

// Copy returns a deep copy of the Candidate with an empty audit trail.
func (c *Candidate) Copy() *Candidate {
	return &Candidate{
		Name:     c.Name,
		Topology: c.Topology.Copy(),
	}
}
