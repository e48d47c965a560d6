// Package diff computes the changes between a Topology and a Candidate derived
// from it, and renders them for operator preview. Computing a Diff (and
// validating its Candidate, if requested) is independent of how much detail
// is rendered.
package diff

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"go.topoplan.dev/core/rules"
	"go.topoplan.dev/core/topology"
)

// Options of Compute.
type Options struct {
	// Validate the Candidate, storing Results on the Diff.
	Validate bool
}

// RepNodeChange records a RepNode which was added (From is zero),
// removed (To is zero), or relocated to another StorageNode.
type RepNodeChange struct {
	RepNode  topology.RepNodeID
	From, To topology.StorageNodeID
	// Dir is the storage directory assigned on To.
	Dir string
}

// ArbNodeChange records an ArbNode which was added (From is zero),
// removed (To is zero), or relocated to another StorageNode.
type ArbNodeChange struct {
	ArbNode  topology.ArbNodeID
	From, To topology.StorageNodeID
}

// ShardChange records all changes of a single Shard.
type ShardChange struct {
	Shard            topology.ShardID
	Created, Removed bool
	RepNodes         []RepNodeChange
	ArbNodes         []ArbNodeChange
	Gained, Lost     []topology.PartitionID
}

// ZoneChange records a Zone which was added, removed, or had its properties
// changed. Old properties of an added Zone, and new properties of a removed
// one, are zero valued, except that its Type is carried to both.
type ZoneChange struct {
	Zone              topology.ZoneID
	Name              string
	Created, Removed  bool
	OldType           topology.ZoneType
	NewType           topology.ZoneType
	OldRepFactor      int
	NewRepFactor      int
	OldAllowArbiters  bool
	NewAllowArbiters  bool
	OldMasterAffinity bool
	NewMasterAffinity bool
}

// Diff of a Topology and a Candidate.
type Diff struct {
	OldName, NewName string
	Zones            []ZoneChange
	Shards           []ShardChange
	RemovedAdmins    []topology.AdminID
	// Results of validating the Candidate, if requested.
	Results *rules.Results
}

// Compute the Diff from |old| (which may be named |oldName|) to |cand|.
func Compute(old *topology.Topology, oldName string, cand *topology.Candidate,
	params *topology.Parameters, opts Options) *Diff {

	var d = &Diff{
		OldName:       oldName,
		NewName:       cand.Name,
		RemovedAdmins: append([]topology.AdminID(nil), cand.RemovedAdmins...),
	}
	var nt = cand.Topology

	for _, z := range nt.SortedZones() {
		var o, existed = old.Zones[z.ID]
		if !existed {
			o = &topology.Zone{Type: z.Type}
		} else if o.Type == z.Type && o.RepFactor == z.RepFactor &&
			o.AllowArbiters == z.AllowArbiters && o.MasterAffinity == z.MasterAffinity {
			continue
		}
		d.Zones = append(d.Zones, ZoneChange{
			Zone:              z.ID,
			Name:              z.Name,
			Created:           !existed,
			OldType:           o.Type,
			NewType:           z.Type,
			OldRepFactor:      o.RepFactor,
			NewRepFactor:      z.RepFactor,
			OldAllowArbiters:  o.AllowArbiters,
			NewAllowArbiters:  z.AllowArbiters,
			OldMasterAffinity: o.MasterAffinity,
			NewMasterAffinity: z.MasterAffinity,
		})
	}
	for _, o := range old.SortedZones() {
		if _, ok := nt.Zones[o.ID]; ok {
			continue
		}
		d.Zones = append(d.Zones, ZoneChange{
			Zone:              o.ID,
			Name:              o.Name,
			Removed:           true,
			OldType:           o.Type,
			NewType:           o.Type,
			OldRepFactor:      o.RepFactor,
			OldAllowArbiters:  o.AllowArbiters,
			OldMasterAffinity: o.MasterAffinity,
		})
	}
	sort.Slice(d.Zones, func(i, j int) bool { return d.Zones[i].Zone < d.Zones[j].Zone })

	var changes = make(map[topology.ShardID]*ShardChange)
	var get = func(id topology.ShardID) *ShardChange {
		if sc, ok := changes[id]; ok {
			return sc
		}
		changes[id] = &ShardChange{Shard: id}
		return changes[id]
	}

	for _, s := range nt.SortedShards() {
		var os, existed = old.Shards[s.ID]
		if !existed {
			get(s.ID).Created = true
			os = &topology.Shard{}
		}
		for _, rn := range s.SortedRepNodes() {
			if orn, ok := os.RepNodes[rn.ID]; !ok {
				get(s.ID).RepNodes = append(get(s.ID).RepNodes,
					RepNodeChange{RepNode: rn.ID, To: rn.StorageNode, Dir: rn.StorageDir})
			} else if orn.StorageNode != rn.StorageNode {
				get(s.ID).RepNodes = append(get(s.ID).RepNodes,
					RepNodeChange{RepNode: rn.ID, From: orn.StorageNode, To: rn.StorageNode, Dir: rn.StorageDir})
			}
		}
		for _, orn := range os.SortedRepNodes() {
			if _, ok := s.RepNodes[orn.ID]; !ok {
				get(s.ID).RepNodes = append(get(s.ID).RepNodes,
					RepNodeChange{RepNode: orn.ID, From: orn.StorageNode})
			}
		}
		for _, an := range s.SortedArbNodes() {
			if oan, ok := os.ArbNodes[an.ID]; !ok {
				get(s.ID).ArbNodes = append(get(s.ID).ArbNodes, ArbNodeChange{ArbNode: an.ID, To: an.StorageNode})
			} else if oan.StorageNode != an.StorageNode {
				get(s.ID).ArbNodes = append(get(s.ID).ArbNodes,
					ArbNodeChange{ArbNode: an.ID, From: oan.StorageNode, To: an.StorageNode})
			}
		}
		for _, oan := range os.SortedArbNodes() {
			if _, ok := s.ArbNodes[oan.ID]; !ok {
				get(s.ID).ArbNodes = append(get(s.ID).ArbNodes, ArbNodeChange{ArbNode: oan.ID, From: oan.StorageNode})
			}
		}
	}
	for _, os := range old.SortedShards() {
		if _, ok := nt.Shards[os.ID]; ok {
			continue
		}
		var sc = get(os.ID)
		sc.Removed = true
		for _, orn := range os.SortedRepNodes() {
			sc.RepNodes = append(sc.RepNodes, RepNodeChange{RepNode: orn.ID, From: orn.StorageNode})
		}
		for _, oan := range os.SortedArbNodes() {
			sc.ArbNodes = append(sc.ArbNodes, ArbNodeChange{ArbNode: oan.ID, From: oan.StorageNode})
		}
	}

	var parts []topology.PartitionID
	for p := range nt.Partitions {
		parts = append(parts, p)
	}
	for p := range old.Partitions {
		if _, ok := nt.Partitions[p]; !ok {
			parts = append(parts, p)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })

	for _, p := range parts {
		var from, to = old.Partitions[p], nt.Partitions[p]
		if from == to {
			continue
		}
		if from != 0 {
			get(from).Lost = append(get(from).Lost, p)
		}
		if to != 0 {
			get(to).Gained = append(get(to).Gained, p)
		}
	}

	for _, sc := range changes {
		d.Shards = append(d.Shards, *sc)
	}
	sort.Slice(d.Shards, func(i, j int) bool { return d.Shards[i].Shard < d.Shards[j].Shard })

	if opts.Validate {
		d.Results = rules.Validate(nt, params, false)
	}
	return d
}

// IsEmpty returns true if the Candidate doesn't differ from the old Topology.
func (d *Diff) IsEmpty() bool {
	return len(d.Zones) == 0 && len(d.Shards) == 0 && len(d.RemovedAdmins) == 0
}

// Counts of changes, by category.
type Counts struct {
	CreatedShards, RemovedShards                    int
	NewRepNodes, RelocatedRepNodes, RemovedRepNodes int
	NewArbNodes, RelocatedArbNodes, RemovedArbNodes int
	ChangedZones, MovedPartitions                   int
}

// Counts returns the number of changes of each category.
func (d *Diff) Counts() Counts {
	var c = Counts{ChangedZones: len(d.Zones)}

	for _, sc := range d.Shards {
		if sc.Created {
			c.CreatedShards++
		} else if sc.Removed {
			c.RemovedShards++
		}
		for _, rn := range sc.RepNodes {
			switch {
			case rn.From == 0:
				c.NewRepNodes++
			case rn.To == 0:
				c.RemovedRepNodes++
			default:
				c.RelocatedRepNodes++
			}
		}
		for _, an := range sc.ArbNodes {
			switch {
			case an.From == 0:
				c.NewArbNodes++
			case an.To == 0:
				c.RemovedArbNodes++
			default:
				c.RelocatedArbNodes++
			}
		}
		c.MovedPartitions += len(sc.Gained)
	}
	return c
}

// Display renders the Diff. Counts of each change category are always
// rendered. If |verbose|, changes of each Zone and Shard follow.
func (d *Diff) Display(verbose bool) string {
	var b bytes.Buffer
	var c = d.Counts()
	var oldName = d.OldName
	if oldName == "" {
		oldName = "current topology"
	}
	fmt.Fprintf(&b, "Topology transformation from %s to %s:\n", oldName, d.NewName)

	if d.IsEmpty() {
		b.WriteString("No differences in topology.\n")
	}
	for _, line := range []struct {
		n    int
		verb string
		noun string
	}{
		{c.CreatedShards, "Create", "shard"},
		{c.RemovedShards, "Remove", "shard"},
		{c.NewRepNodes, "Create", "RN"},
		{c.RelocatedRepNodes, "Relocate", "RN"},
		{c.RemovedRepNodes, "Remove", "RN"},
		{c.NewArbNodes, "Create", "AN"},
		{c.RelocatedArbNodes, "Relocate", "AN"},
		{c.RemovedArbNodes, "Remove", "AN"},
		{c.ChangedZones, "Change", "zone"},
		{c.MovedPartitions, "Move", "partition"},
		{len(d.RemovedAdmins), "Remove", "admin"},
	} {
		if line.n == 0 {
			continue
		}
		var noun = line.noun
		if line.n != 1 {
			noun += "s"
		}
		fmt.Fprintf(&b, "%s %d %s\n", line.verb, line.n, noun)
	}

	if verbose && !d.IsEmpty() {
		d.writeDetail(&b)
	}
	if d.Results != nil {
		b.WriteString(d.Results.String())
	}
	return b.String()
}

func (d *Diff) writeDetail(b *bytes.Buffer) {
	for _, z := range d.Zones {
		switch {
		case z.Created:
			fmt.Fprintf(b, "zone %s (%s): add %s zone, repfactor %d, allow arbiters %t, master affinity %t\n",
				z.Name, z.Zone, z.NewType, z.NewRepFactor, z.NewAllowArbiters, z.NewMasterAffinity)
		case z.Removed:
			fmt.Fprintf(b, "zone %s (%s): remove %s zone of repfactor %d\n",
				z.Name, z.Zone, z.OldType, z.OldRepFactor)
		default:
			fmt.Fprintf(b, "zone %s (%s): repfactor %d -> %d, allow arbiters %t -> %t, master affinity %t -> %t",
				z.Name, z.Zone, z.OldRepFactor, z.NewRepFactor, z.OldAllowArbiters, z.NewAllowArbiters,
				z.OldMasterAffinity, z.NewMasterAffinity)
			if z.OldType != z.NewType {
				fmt.Fprintf(b, ", type %s -> %s", z.OldType, z.NewType)
			}
			b.WriteString("\n")
		}
	}
	if len(d.RemovedAdmins) != 0 {
		fmt.Fprintf(b, "remove admins: %s\n", topology.JoinIDs(d.RemovedAdmins))
	}
	if len(d.Shards) == 0 {
		return
	}

	var table = tablewriter.NewTable(b,
		tablewriter.WithHeader([]string{"Shard", "Change", "Node", "From", "To"}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)

	for _, sc := range d.Shards {
		var shard = sc.Shard.String()
		switch {
		case sc.Created:
			_ = table.Append([]string{shard, "create shard", "", "", ""})
		case sc.Removed:
			_ = table.Append([]string{shard, "remove shard", "", "", ""})
		}
		for _, rn := range sc.RepNodes {
			var to = snString(rn.To)
			if rn.Dir != "" {
				to += ":" + rn.Dir
			}
			_ = table.Append([]string{shard, verb(rn.From, rn.To) + " RN", rn.RepNode.String(), snString(rn.From), to})
		}
		for _, an := range sc.ArbNodes {
			_ = table.Append([]string{shard, verb(an.From, an.To) + " AN", an.ArbNode.String(),
				snString(an.From), snString(an.To)})
		}
		if len(sc.Gained) != 0 {
			_ = table.Append([]string{shard, "gain partitions", topology.FormatPartitions(sc.Gained), "", ""})
		}
		if len(sc.Lost) != 0 {
			_ = table.Append([]string{shard, "lose partitions", topology.FormatPartitions(sc.Lost), "", ""})
		}
	}
	_ = table.Render() // Writes to a bytes.Buffer, which cannot fail.
}

func verb(from, to topology.StorageNodeID) string {
	switch {
	case from == 0:
		return "create"
	case to == 0:
		return "remove"
	default:
		return "relocate"
	}
}

func snString(sn topology.StorageNodeID) string {
	if sn == 0 {
		return ""
	}
	return sn.String()
}
