package topology

import (
	"fmt"
	"sort"
)

// ZoneType distinguishes zones whose RepNodes vote in elections (Primary)
// from zones which only hold read replicas (Secondary).
type ZoneType int

const (
	Primary ZoneType = iota
	Secondary
)

func (t ZoneType) String() string {
	switch t {
	case Primary:
		return "PRIMARY"
	case Secondary:
		return "SECONDARY"
	default:
		return fmt.Sprintf("ZoneType(%d)", int(t))
	}
}

// NodeType of a RepNode.
type NodeType int

const (
	Electable NodeType = iota
	SecondaryNode
)

func (t NodeType) String() string {
	switch t {
	case Electable:
		return "ELECTABLE"
	case SecondaryNode:
		return "SECONDARY"
	default:
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
}

// NodeTypeFor returns the RepNode NodeType expected within a Zone of ZoneType.
func NodeTypeFor(t ZoneType) NodeType {
	if t == Secondary {
		return SecondaryNode
	}
	return Electable
}

// Zone is a placement domain (a datacenter) having its own replication
// factor and arbiter / master-affinity policy.
type Zone struct {
	ID             ZoneID
	Name           string
	Type           ZoneType
	RepFactor      int
	AllowArbiters  bool
	MasterAffinity bool
}

// StorageNode is a host with a bounded number of RepNode slots.
type StorageNode struct {
	ID       StorageNodeID
	Zone     ZoneID
	Hostname string
}

// RepNode is a data-holding replica of its Shard.
type RepNode struct {
	ID          RepNodeID
	StorageNode StorageNodeID
	Type        NodeType
	// StorageDir is the path of the StorageNode storage directory holding
	// the RepNode's data, or empty if the node lives in the root directory.
	StorageDir string
}

// ArbNode is a vote-only member of its Shard. It holds no data.
type ArbNode struct {
	ID          ArbNodeID
	StorageNode StorageNodeID
}

// Shard is a replication group covering a disjoint set of Partitions.
type Shard struct {
	ID       ShardID
	RepNodes map[RepNodeID]*RepNode
	ArbNodes map[ArbNodeID]*ArbNode

	rnSeq, anSeq int
}

// Topology owns all Zones, StorageNodes, Shards and Partitions of a store.
type Topology struct {
	Zones        map[ZoneID]*Zone
	StorageNodes map[StorageNodeID]*StorageNode
	Shards       map[ShardID]*Shard
	// Partitions maps each PartitionID to its owning Shard.
	Partitions map[PartitionID]ShardID

	zoneSeq, snSeq, shardSeq int
}

// New returns an empty Topology.
func New() *Topology {
	return &Topology{
		Zones:        make(map[ZoneID]*Zone),
		StorageNodes: make(map[StorageNodeID]*StorageNode),
		Shards:       make(map[ShardID]*Shard),
		Partitions:   make(map[PartitionID]ShardID),
	}
}

// AddZone adds a copy of |z| under a newly allocated ZoneID.
func (t *Topology) AddZone(z Zone) *Zone {
	t.zoneSeq++
	z.ID = ZoneID(t.zoneSeq)
	t.Zones[z.ID] = &z
	return &z
}

// PutZone adds or replaces |z| under its own ZoneID.
func (t *Topology) PutZone(z Zone) *Zone {
	t.zoneSeq = max(t.zoneSeq, int(z.ID))
	t.Zones[z.ID] = &z
	return &z
}

// AddStorageNode adds a StorageNode to |zone| under a newly allocated ID.
func (t *Topology) AddStorageNode(zone ZoneID, hostname string) *StorageNode {
	t.snSeq++
	var sn = &StorageNode{ID: StorageNodeID(t.snSeq), Zone: zone, Hostname: hostname}
	t.StorageNodes[sn.ID] = sn
	return sn
}

// PutStorageNode adds or replaces |sn| under its own StorageNodeID.
func (t *Topology) PutStorageNode(sn StorageNode) *StorageNode {
	t.snSeq = max(t.snSeq, int(sn.ID))
	t.StorageNodes[sn.ID] = &sn
	return &sn
}

// AddShard adds an empty Shard under a newly allocated ShardID.
// ShardIDs are never reused, even after a Shard is removed.
func (t *Topology) AddShard() *Shard {
	t.shardSeq++
	return t.PutShard(ShardID(t.shardSeq))
}

// PutShard adds an empty Shard having |id|, or returns the existing one.
func (t *Topology) PutShard(id ShardID) *Shard {
	if s, ok := t.Shards[id]; ok {
		return s
	}
	t.shardSeq = max(t.shardSeq, int(id))
	var s = &Shard{
		ID:       id,
		RepNodes: make(map[RepNodeID]*RepNode),
		ArbNodes: make(map[ArbNodeID]*ArbNode),
	}
	t.Shards[id] = s
	return s
}

// RemoveShard removes the Shard and all of its RepNodes and ArbNodes.
// Partitions of the Shard are left in place, and become orphans.
func (t *Topology) RemoveShard(id ShardID) {
	delete(t.Shards, id)
}

// AddRepNode adds a RepNode to the Shard under a newly allocated RepNodeID.
func (s *Shard) AddRepNode(sn StorageNodeID, typ NodeType, dir string) *RepNode {
	s.rnSeq++
	return s.PutRepNode(RepNode{
		ID:          RepNodeID{Shard: s.ID, Node: s.rnSeq},
		StorageNode: sn,
		Type:        typ,
		StorageDir:  dir,
	})
}

// PutRepNode adds or replaces |rn| under its own RepNodeID.
func (s *Shard) PutRepNode(rn RepNode) *RepNode {
	if rn.ID.Shard != s.ID {
		panic(fmt.Sprintf("RepNode %s doesn't belong to shard %s", rn.ID, s.ID))
	}
	s.rnSeq = max(s.rnSeq, rn.ID.Node)
	s.RepNodes[rn.ID] = &rn
	return &rn
}

// AddArbNode adds an ArbNode to the Shard under a newly allocated ArbNodeID.
func (s *Shard) AddArbNode(sn StorageNodeID) *ArbNode {
	s.anSeq++
	return s.PutArbNode(ArbNode{ID: ArbNodeID{Shard: s.ID, Node: s.anSeq}, StorageNode: sn})
}

// PutArbNode adds or replaces |an| under its own ArbNodeID.
func (s *Shard) PutArbNode(an ArbNode) *ArbNode {
	if an.ID.Shard != s.ID {
		panic(fmt.Sprintf("ArbNode %s doesn't belong to shard %s", an.ID, s.ID))
	}
	s.anSeq = max(s.anSeq, an.ID.Node)
	s.ArbNodes[an.ID] = &an
	return &an
}

// SortedRepNodes returns RepNodes of the Shard in RepNodeID order.
func (s *Shard) SortedRepNodes() []*RepNode {
	var out = make([]*RepNode, 0, len(s.RepNodes))
	for _, rn := range s.RepNodes {
		out = append(out, rn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}

// SortedArbNodes returns ArbNodes of the Shard in ArbNodeID order.
func (s *Shard) SortedArbNodes() []*ArbNode {
	var out = make([]*ArbNode, 0, len(s.ArbNodes))
	for _, an := range s.ArbNodes {
		out = append(out, an)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}

// HostsRepNodeOn returns true if any RepNode of the Shard is placed on |sn|.
func (s *Shard) HostsRepNodeOn(sn StorageNodeID) bool {
	for _, rn := range s.RepNodes {
		if rn.StorageNode == sn {
			return true
		}
	}
	return false
}

// HostsNodeOn returns true if any RepNode or ArbNode of the Shard is placed on |sn|.
func (s *Shard) HostsNodeOn(sn StorageNodeID) bool {
	if s.HostsRepNodeOn(sn) {
		return true
	}
	for _, an := range s.ArbNodes {
		if an.StorageNode == sn {
			return true
		}
	}
	return false
}

// SortedZones returns Zones in ZoneID order.
func (t *Topology) SortedZones() []*Zone {
	var out = make([]*Zone, 0, len(t.Zones))
	for _, z := range t.Zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedStorageNodes returns StorageNodes in StorageNodeID order.
func (t *Topology) SortedStorageNodes() []*StorageNode {
	var out = make([]*StorageNode, 0, len(t.StorageNodes))
	for _, sn := range t.StorageNodes {
		out = append(out, sn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedShards returns Shards in ShardID order.
func (t *Topology) SortedShards() []*Shard {
	var out = make([]*Shard, 0, len(t.Shards))
	for _, s := range t.Shards {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StorageNodesIn returns StorageNodes of |zone| in StorageNodeID order.
func (t *Topology) StorageNodesIn(zone ZoneID) []*StorageNode {
	var out []*StorageNode
	for _, sn := range t.SortedStorageNodes() {
		if sn.Zone == zone {
			out = append(out, sn)
		}
	}
	return out
}

// ZoneOf returns the Zone of StorageNode |sn|, or nil if either is unknown.
func (t *Topology) ZoneOf(sn StorageNodeID) *Zone {
	if n, ok := t.StorageNodes[sn]; ok {
		return t.Zones[n.Zone]
	}
	return nil
}

// RepNodesOn returns all RepNodes placed on |sn|, in RepNodeID order.
func (t *Topology) RepNodesOn(sn StorageNodeID) []*RepNode {
	var out []*RepNode
	for _, s := range t.SortedShards() {
		for _, rn := range s.SortedRepNodes() {
			if rn.StorageNode == sn {
				out = append(out, rn)
			}
		}
	}
	return out
}

// ArbNodesOn returns all ArbNodes placed on |sn|, in ArbNodeID order.
func (t *Topology) ArbNodesOn(sn StorageNodeID) []*ArbNode {
	var out []*ArbNode
	for _, s := range t.SortedShards() {
		for _, an := range s.SortedArbNodes() {
			if an.StorageNode == sn {
				out = append(out, an)
			}
		}
	}
	return out
}

// RepNodeCounts returns the number of RepNodes placed on each StorageNode.
func (t *Topology) RepNodeCounts() map[StorageNodeID]int {
	var out = make(map[StorageNodeID]int)
	for _, s := range t.Shards {
		for _, rn := range s.RepNodes {
			out[rn.StorageNode]++
		}
	}
	return out
}

// ArbNodeCounts returns the number of ArbNodes placed on each StorageNode.
func (t *Topology) ArbNodeCounts() map[StorageNodeID]int {
	var out = make(map[StorageNodeID]int)
	for _, s := range t.Shards {
		for _, an := range s.ArbNodes {
			out[an.StorageNode]++
		}
	}
	return out
}

// RepNodesInZone returns RepNodes of |shard| placed within |zone|.
func (t *Topology) RepNodesInZone(shard *Shard, zone ZoneID) []*RepNode {
	var out []*RepNode
	for _, rn := range shard.SortedRepNodes() {
		if sn, ok := t.StorageNodes[rn.StorageNode]; ok && sn.Zone == zone {
			out = append(out, rn)
		}
	}
	return out
}

// InUse returns StorageNodes hosting any RepNode or ArbNode, in order.
func (t *Topology) InUse() []StorageNodeID {
	var set = make(map[StorageNodeID]struct{})
	for _, s := range t.Shards {
		for _, rn := range s.RepNodes {
			set[rn.StorageNode] = struct{}{}
		}
		for _, an := range s.ArbNodes {
			set[an.StorageNode] = struct{}{}
		}
	}
	var out = make([]StorageNodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PrimaryRepFactor is the summed RepFactor of all Primary Zones.
func (t *Topology) PrimaryRepFactor() int {
	var rf int
	for _, z := range t.Zones {
		if z.Type == Primary {
			rf += z.RepFactor
		}
	}
	return rf
}

// TotalRepFactor is the summed RepFactor of all Zones.
func (t *Topology) TotalRepFactor() int {
	var rf int
	for _, z := range t.Zones {
		rf += z.RepFactor
	}
	return rf
}

// NumPartitions returns the number of Partitions of the Topology.
func (t *Topology) NumPartitions() int { return len(t.Partitions) }

// PartitionCounts returns the number of Partitions owned by each current
// Shard. Every current Shard has an entry, possibly zero.
func (t *Topology) PartitionCounts() map[ShardID]int {
	var out = make(map[ShardID]int, len(t.Shards))
	for id := range t.Shards {
		out[id] = 0
	}
	for _, s := range t.Partitions {
		if _, ok := out[s]; ok {
			out[s]++
		}
	}
	return out
}

// PartitionsOf returns the sorted Partitions owned by |shard|.
func (t *Topology) PartitionsOf(shard ShardID) []PartitionID {
	var out []PartitionID
	for p, s := range t.Partitions {
		if s == shard {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PartitionsOutside returns the sorted Partitions of the Topology which
// fall outside of 1 through |n|.
func (t *Topology) PartitionsOutside(n int) []PartitionID {
	var out []PartitionID
	for p := range t.Partitions {
		if p < 1 || int(p) > n {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Copy returns a deep copy of the Topology.
func (t *Topology) Copy() *Topology {
	var out = &Topology{
		Zones:        make(map[ZoneID]*Zone, len(t.Zones)),
		StorageNodes: make(map[StorageNodeID]*StorageNode, len(t.StorageNodes)),
		Shards:       make(map[ShardID]*Shard, len(t.Shards)),
		Partitions:   make(map[PartitionID]ShardID, len(t.Partitions)),
		zoneSeq:      t.zoneSeq,
		snSeq:        t.snSeq,
		shardSeq:     t.shardSeq,
	}
	for id, z := range t.Zones {
		var c = *z
		out.Zones[id] = &c
	}
	for id, sn := range t.StorageNodes {
		var c = *sn
		out.StorageNodes[id] = &c
	}
	for id, s := range t.Shards {
		var c = &Shard{
			ID:       s.ID,
			RepNodes: make(map[RepNodeID]*RepNode, len(s.RepNodes)),
			ArbNodes: make(map[ArbNodeID]*ArbNode, len(s.ArbNodes)),
			rnSeq:    s.rnSeq,
			anSeq:    s.anSeq,
		}
		for rid, rn := range s.RepNodes {
			var r = *rn
			c.RepNodes[rid] = &r
		}
		for aid, an := range s.ArbNodes {
			var a = *an
			c.ArbNodes[aid] = &a
		}
		out.Shards[id] = c
	}
	for p, s := range t.Partitions {
		out.Partitions[p] = s
	}
	return out
}
