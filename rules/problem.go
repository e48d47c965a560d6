package rules

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"go.topoplan.dev/core/topology"
)

// Kind discriminates Problems. Each Kind is either a violation, which must be
// corrected before a Topology is deployed, or a warning which should (but
// need not) be.
type Kind int

const (
	// Violations.
	InsufficientRNs Kind = iota + 1
	OverCapacity
	RNProximity
	NoPrimaryDC
	WrongNodeType
	EmptyZone
	WrongAdminType
	ANWrongDC
	ANNotAllowedOnSN
	StorageNodeMissing
	InsufficientAdmins

	// Warnings.
	UnderCapacity
	ExcessRNs
	ExcessANs
	ExcessAdmins
	NonOptimalNumPartitions
	MissingRootDirectorySize
	MissingStorageDirectorySize
	MultipleRNsInRoot
	RNHeapExceedsSNMemory
	InsufficientANs
	UnevenANDistribution
)

type need uint8

const (
	needZone need = 1 << iota
	needStorageNode
	needShard
	needRepNode
	needArbNode
	needAdmin
)

var kinds = map[Kind]struct {
	name      string
	violation bool
	needs     need
}{
	InsufficientRNs:    {"InsufficientRNs", true, needZone | needShard},
	OverCapacity:       {"OverCapacity", true, needStorageNode},
	RNProximity:        {"RNProximity", true, needShard | needStorageNode},
	NoPrimaryDC:        {"NoPrimaryDC", true, 0},
	WrongNodeType:      {"WrongNodeType", true, needRepNode | needZone},
	EmptyZone:          {"EmptyZone", true, needZone},
	WrongAdminType:     {"WrongAdminType", true, needAdmin | needZone},
	ANWrongDC:          {"ANWrongDC", true, needArbNode | needZone},
	ANNotAllowedOnSN:   {"ANNotAllowedOnSN", true, needArbNode | needStorageNode},
	StorageNodeMissing: {"StorageNodeMissing", true, needStorageNode},
	InsufficientAdmins: {"InsufficientAdmins", true, needZone},

	UnderCapacity:               {"UnderCapacity", false, needStorageNode},
	ExcessRNs:                   {"ExcessRNs", false, needZone | needShard},
	ExcessANs:                   {"ExcessANs", false, needShard},
	ExcessAdmins:                {"ExcessAdmins", false, needZone},
	NonOptimalNumPartitions:     {"NonOptimalNumPartitions", false, 0},
	MissingRootDirectorySize:    {"MissingRootDirectorySize", false, needStorageNode},
	MissingStorageDirectorySize: {"MissingStorageDirectorySize", false, needStorageNode | needRepNode},
	MultipleRNsInRoot:           {"MultipleRNsInRoot", false, needStorageNode},
	RNHeapExceedsSNMemory:       {"RNHeapExceedsSNMemory", false, needStorageNode},
	InsufficientANs:             {"InsufficientANs", false, needShard},
	UnevenANDistribution:        {"UnevenANDistribution", false, needZone},
}

func (k Kind) String() string {
	if d, ok := kinds[k]; ok {
		return d.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsViolation returns true if the Kind is a violation, or false if it's a warning.
func (k Kind) IsViolation() bool { return kinds[k].violation }

// Problem is a single validation finding. Fields which don't apply to the
// Problem's Kind are zero-valued, so that Problems compare with ==.
type Problem struct {
	Kind        Kind
	Zone        topology.ZoneID
	StorageNode topology.StorageNodeID
	Shard       topology.ShardID
	RepNode     topology.RepNodeID
	ArbNode     topology.ArbNodeID
	Admin       topology.AdminID
	// Expected and Actual bound the finding: eg a Zone's replication factor
	// and the number of RepNodes of a Shard found within it.
	Expected, Actual int
	Detail           string
}

// NewProblem returns |p| after verifying that every resource required by its
// Kind is set. It panics otherwise: a malformed Problem is a programming error.
func NewProblem(p Problem) Problem {
	var d, ok = kinds[p.Kind]
	if !ok {
		panic(fmt.Sprintf("invalid problem kind %d", int(p.Kind)))
	}
	var check = func(n need, missing bool, field string) {
		if d.needs&n != 0 && missing {
			panic(fmt.Sprintf("%s problem requires %s", d.name, field))
		}
	}
	check(needZone, p.Zone == 0, "Zone")
	check(needStorageNode, p.StorageNode == 0, "StorageNode")
	check(needShard, p.Shard == 0, "Shard")
	check(needRepNode, p.RepNode == topology.RepNodeID{}, "RepNode")
	check(needArbNode, p.ArbNode == topology.ArbNodeID{}, "ArbNode")
	check(needAdmin, p.Admin == 0, "Admin")
	return p
}

// IsViolation returns true if the Problem is a violation.
func (p Problem) IsViolation() bool { return p.Kind.IsViolation() }

// Resource returns the identifier of the resource the Problem is about.
func (p Problem) Resource() string {
	switch {
	case p.RepNode != topology.RepNodeID{}:
		return p.RepNode.String()
	case p.ArbNode != topology.ArbNodeID{}:
		return p.ArbNode.String()
	case p.Admin != 0:
		return p.Admin.String()
	case p.Shard != 0:
		return p.Shard.String()
	case p.StorageNode != 0:
		return p.StorageNode.String()
	case p.Zone != 0:
		return p.Zone.String()
	default:
		return "store"
	}
}

func (p Problem) String() string {
	var msg string

	switch p.Kind {
	case InsufficientRNs:
		msg = fmt.Sprintf("%s has %d RepNodes in zone %s, fewer than its replication factor of %d",
			p.Shard, p.Actual, p.Zone, p.Expected)
	case ExcessRNs:
		msg = fmt.Sprintf("%s has %d RepNodes in zone %s, more than its replication factor of %d",
			p.Shard, p.Actual, p.Zone, p.Expected)
	case OverCapacity:
		msg = fmt.Sprintf("%s hosts %d RepNodes, exceeding its capacity of %d",
			p.StorageNode, p.Actual, p.Expected)
	case UnderCapacity:
		msg = fmt.Sprintf("%s hosts %d RepNodes, below its capacity of %d",
			p.StorageNode, p.Actual, p.Expected)
	case RNProximity:
		msg = fmt.Sprintf("%s has %d RepNodes on %s", p.Shard, p.Actual, p.StorageNode)
	case NoPrimaryDC:
		msg = "no primary zone has a replication factor greater than zero"
	case WrongNodeType:
		msg = fmt.Sprintf("%s in zone %s has type %s", p.RepNode, p.Zone, p.Detail)
	case EmptyZone:
		msg = fmt.Sprintf("zone %s has no storage nodes", p.Zone)
	case WrongAdminType:
		msg = fmt.Sprintf("%s in zone %s has type %s", p.Admin, p.Zone, p.Detail)
	case ANWrongDC:
		msg = fmt.Sprintf("%s is in zone %s, which doesn't allow arbiters", p.ArbNode, p.Zone)
	case ANNotAllowedOnSN:
		msg = fmt.Sprintf("%s is on %s, which doesn't allow arbiters", p.ArbNode, p.StorageNode)
	case StorageNodeMissing:
		msg = fmt.Sprintf("%s is missing (%s)", p.StorageNode, p.Detail)
	case InsufficientAdmins:
		msg = fmt.Sprintf("zone %s has %d admins, fewer than its replication factor of %d",
			p.Zone, p.Actual, p.Expected)
	case ExcessAdmins:
		msg = fmt.Sprintf("zone %s has %d admins, more than its replication factor of %d",
			p.Zone, p.Actual, p.Expected)
	case ExcessANs:
		msg = fmt.Sprintf("%s has %d ArbNodes, but requires %d", p.Shard, p.Actual, p.Expected)
	case InsufficientANs:
		msg = fmt.Sprintf("%s has %d ArbNodes, but requires %d", p.Shard, p.Actual, p.Expected)
	case NonOptimalNumPartitions:
		if p.Shard != 0 {
			msg = fmt.Sprintf("%s owns %d partitions, but its share is %d", p.Shard, p.Actual, p.Expected)
		} else {
			msg = fmt.Sprintf("%d partitions cannot cover %d shards", p.Actual, p.Expected)
		}
	case MissingRootDirectorySize:
		msg = fmt.Sprintf("%s hosts RepNodes in its root directory, which has no size", p.StorageNode)
	case MissingStorageDirectorySize:
		msg = fmt.Sprintf("%s storage directory %s of %s has no size", p.StorageNode, p.Detail, p.RepNode)
	case MultipleRNsInRoot:
		msg = fmt.Sprintf("%s hosts %d RepNodes in its root directory", p.StorageNode, p.Actual)
	case RNHeapExceedsSNMemory:
		msg = fmt.Sprintf("RepNode heaps of %s total %s, exceeding its memory of %s", p.StorageNode,
			humanize.IBytes(uint64(p.Actual)<<20), humanize.IBytes(uint64(p.Expected)<<20))
	case UnevenANDistribution:
		msg = fmt.Sprintf("ArbNodes of zone %s are unevenly spread (%d to %d per storage node)",
			p.Zone, p.Expected, p.Actual)
	}
	return p.Kind.String() + " " + p.Resource() + ": " + msg
}
