// Package rules validates a Topology against the placement rule set
// (capacity, replication, proximity, arbiter and admin placement, partition
// balance, directory sizing), and guards transitions between Topologies
// against reductions of primary replication.
package rules

import (
	"sort"

	"go.topoplan.dev/core/arbiters"
	"go.topoplan.dev/core/partitions"
	"go.topoplan.dev/core/topology"
)

// Validate checks |t| against the rule set and returns its Problems.
// If |deployed|, checks which only apply once a Topology has been deployed
// are also run: admin counts and types, RepNode types, and directory sizes.
func Validate(t *topology.Topology, params *topology.Parameters, deployed bool) *Results {
	var r = new(Results)

	checkZones(r, t)
	checkStorageNodes(r, t, params, deployed)
	checkShards(r, t, deployed)
	checkArbiters(r, t, params)
	checkPartitions(r, t, params)

	if deployed {
		checkAdmins(r, t, params)
	}
	return r
}

// CalculateMaximumCapacity sums the configured capacity of StorageNodes of |pool|.
func CalculateMaximumCapacity(pool topology.Pool, params *topology.Parameters) int {
	var n int
	for _, sn := range pool.StorageNodes {
		n += params.Capacity(sn)
	}
	return n
}

func checkZones(r *Results, t *topology.Topology) {
	var hasPrimary bool
	for _, z := range t.SortedZones() {
		if z.Type == topology.Primary && z.RepFactor > 0 {
			hasPrimary = true
		}
		if len(t.StorageNodesIn(z.ID)) == 0 {
			r.add(Problem{Kind: EmptyZone, Zone: z.ID})
		}
	}
	if !hasPrimary {
		r.add(Problem{Kind: NoPrimaryDC})
	}
}

func checkStorageNodes(r *Results, t *topology.Topology, params *topology.Parameters, deployed bool) {
	var counts = t.RepNodeCounts()

	// RepNodes and ArbNodes placed on unknown StorageNodes.
	for _, s := range t.SortedShards() {
		for _, rn := range s.SortedRepNodes() {
			if _, ok := t.StorageNodes[rn.StorageNode]; !ok {
				r.add(Problem{Kind: StorageNodeMissing, StorageNode: rn.StorageNode,
					Detail: "hosts " + rn.ID.String()})
			}
		}
		for _, an := range s.SortedArbNodes() {
			if _, ok := t.StorageNodes[an.StorageNode]; !ok {
				r.add(Problem{Kind: StorageNodeMissing, StorageNode: an.StorageNode,
					Detail: "hosts " + an.ID.String()})
			}
		}
	}

	for _, sn := range t.SortedStorageNodes() {
		var snp, ok = params.StorageNode(sn.ID)
		if !ok {
			r.add(Problem{Kind: StorageNodeMissing, StorageNode: sn.ID, Detail: "no parameters"})
			continue
		}
		if n := counts[sn.ID]; n > snp.Capacity {
			r.add(Problem{Kind: OverCapacity, StorageNode: sn.ID, Expected: snp.Capacity, Actual: n})
		} else if n < snp.Capacity {
			r.add(Problem{Kind: UnderCapacity, StorageNode: sn.ID, Expected: snp.Capacity, Actual: n})
		}

		var rns = t.RepNodesOn(sn.ID)
		var inRoot int
		var heapMB int
		for _, rn := range rns {
			if rn.StorageDir == "" {
				inRoot++
			} else if deployed && snp.DirSize(rn.StorageDir) == 0 {
				r.add(Problem{Kind: MissingStorageDirectorySize, StorageNode: sn.ID,
					RepNode: rn.ID, Detail: rn.StorageDir})
			}
			heapMB += params.RepNodes[rn.ID].HeapMB
		}
		if inRoot > 1 {
			r.add(Problem{Kind: MultipleRNsInRoot, StorageNode: sn.ID, Expected: 1, Actual: inRoot})
		}
		if deployed && inRoot != 0 && snp.RootDirSize == 0 {
			r.add(Problem{Kind: MissingRootDirectorySize, StorageNode: sn.ID, Detail: snp.RootDirPath})
		}
		if snp.MemoryMB != 0 && heapMB > snp.MemoryMB {
			r.add(Problem{Kind: RNHeapExceedsSNMemory, StorageNode: sn.ID,
				Expected: snp.MemoryMB, Actual: heapMB})
		}
	}
}

func checkShards(r *Results, t *topology.Topology, deployed bool) {
	var zones = t.SortedZones()

	for _, s := range t.SortedShards() {
		for _, z := range zones {
			var n = len(t.RepNodesInZone(s, z.ID))
			if n < z.RepFactor {
				r.add(Problem{Kind: InsufficientRNs, Zone: z.ID, Shard: s.ID, Expected: z.RepFactor, Actual: n})
			} else if n > z.RepFactor {
				r.add(Problem{Kind: ExcessRNs, Zone: z.ID, Shard: s.ID, Expected: z.RepFactor, Actual: n})
			}
		}

		var perSN = make(map[topology.StorageNodeID]int)
		for _, rn := range s.RepNodes {
			perSN[rn.StorageNode]++
		}
		var sns = make([]topology.StorageNodeID, 0, len(perSN))
		for sn := range perSN {
			sns = append(sns, sn)
		}
		sort.Slice(sns, func(i, j int) bool { return sns[i] < sns[j] })

		for _, sn := range sns {
			if perSN[sn] > 1 {
				r.add(Problem{Kind: RNProximity, Shard: s.ID, StorageNode: sn, Expected: 1, Actual: perSN[sn]})
			}
		}

		if !deployed {
			continue
		}
		for _, rn := range s.SortedRepNodes() {
			var z = t.ZoneOf(rn.StorageNode)
			if z != nil && rn.Type != topology.NodeTypeFor(z.Type) {
				r.add(Problem{Kind: WrongNodeType, RepNode: rn.ID, Zone: z.ID, Detail: rn.Type.String()})
			}
		}
	}
}

func checkArbiters(r *Results, t *topology.Topology, params *topology.Parameters) {
	var needed = arbiters.Needed(t)
	var zone, hosted = arbiters.SelectZone(t, params, nil)

	for _, s := range t.SortedShards() {
		var ans = s.SortedArbNodes()

		for _, an := range ans {
			var z = t.ZoneOf(an.StorageNode)
			if z == nil {
				continue // Reported as StorageNodeMissing.
			}
			if !z.AllowArbiters {
				r.add(Problem{Kind: ANWrongDC, ArbNode: an.ID, Zone: z.ID})
			}
			if !params.AllowsArbiters(an.StorageNode) {
				r.add(Problem{Kind: ANNotAllowedOnSN, ArbNode: an.ID, StorageNode: an.StorageNode})
			}
		}

		var want int
		if needed {
			want = 1
		}
		if len(ans) > want {
			r.add(Problem{Kind: ExcessANs, Shard: s.ID, Expected: want, Actual: len(ans)})
		} else if len(ans) < want && hosted {
			r.add(Problem{Kind: InsufficientANs, Shard: s.ID, Expected: want, Actual: len(ans)})
		}
	}

	if needed && hosted {
		if lo, hi := arbiters.Spread(t, params, nil, zone); hi-lo > 1 {
			r.add(Problem{Kind: UnevenANDistribution, Zone: zone, Expected: lo, Actual: hi})
		}
	}
}

func checkPartitions(r *Results, t *topology.Topology, params *topology.Parameters) {
	var n = t.NumPartitions()
	if n == 0 || len(t.Shards) == 0 {
		return
	}
	if n < len(t.Shards) {
		r.add(Problem{Kind: NonOptimalNumPartitions, Expected: len(t.Shards), Actual: n})
		return
	}

	var counts = t.PartitionCounts()
	var ids = make([]topology.ShardID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	var targets = partitions.Targets(ids, partitions.Weights(t, params), counts, n)

	for _, s := range t.SortedShards() {
		var c, tgt = counts[s.ID], targets[s.ID]
		if c == 0 || c-tgt > 1 || tgt-c > 1 {
			r.add(Problem{Kind: NonOptimalNumPartitions, Shard: s.ID, Expected: tgt, Actual: c})
		}
	}
}

func checkAdmins(r *Results, t *topology.Topology, params *topology.Parameters) {
	var perZone = make(map[topology.ZoneID]int)

	for _, a := range params.Copy().Admins {
		var z = t.ZoneOf(a.StorageNode)
		if z == nil {
			r.add(Problem{Kind: StorageNodeMissing, StorageNode: a.StorageNode, Detail: "hosts " + a.ID.String()})
			continue
		}
		perZone[z.ID]++

		var want = topology.PrimaryAdmin
		if z.Type == topology.Secondary {
			want = topology.SecondaryAdmin
		}
		if a.Type != want {
			r.add(Problem{Kind: WrongAdminType, Admin: a.ID, Zone: z.ID, Detail: a.Type.String()})
		}
	}

	for _, z := range t.SortedZones() {
		if n := perZone[z.ID]; n < z.RepFactor {
			r.add(Problem{Kind: InsufficientAdmins, Zone: z.ID, Expected: z.RepFactor, Actual: n})
		} else if n > z.RepFactor {
			r.add(Problem{Kind: ExcessAdmins, Zone: z.ID, Expected: z.RepFactor, Actual: n})
		}
	}
}
