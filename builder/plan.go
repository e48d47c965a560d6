package builder

import (
	"sort"

	log "github.com/sirupsen/logrus"
	"go.topoplan.dev/core/arbiters"
	"go.topoplan.dev/core/partitions"
	"go.topoplan.dev/core/topology"
)

// plan is the working state of a single Builder operation. It owns a private
// copy of the source Candidate, and tracks the number of RepNodes placed on
// each StorageNode as they're added, moved, and removed.
type plan struct {
	cand          *topology.Candidate
	t             *topology.Topology
	pool          topology.Pool
	params        *topology.Parameters
	numPartitions int
	used          map[topology.StorageNodeID]int
}

func (b *Builder) newPlan() *plan {
	var cand = b.source.Copy()
	return &plan{
		cand:          cand,
		t:             cand.Topology,
		pool:          b.pool,
		params:        b.params,
		numPartitions: b.numPartitions,
		used:          cand.Topology.RepNodeCounts(),
	}
}

// poolIn returns StorageNodes of the Pool within |zone|, in order.
func (p *plan) poolIn(zone topology.ZoneID) []topology.StorageNodeID {
	var out []topology.StorageNodeID
	for _, sn := range p.pool.StorageNodes {
		if n, ok := p.t.StorageNodes[sn]; ok && n.Zone == zone {
			out = append(out, sn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// supportedShards is the number of complete Shards which the Pool's capacity
// supports: the minimum over Primary Zones with non-zero RepFactor of the
// Zone's capacity divided by its RepFactor.
func (p *plan) supportedShards() int {
	var n = -1
	for _, z := range p.t.SortedZones() {
		if z.Type != topology.Primary || z.RepFactor == 0 {
			continue
		}
		var capacity int
		for _, sn := range p.poolIn(z.ID) {
			capacity += p.params.Capacity(sn)
		}
		if c := capacity / z.RepFactor; n == -1 || c < n {
			n = c
		}
	}
	return max(n, 0)
}

// heavier returns whether |a| hosts more RepNodes relative to its capacity than |b|.
func (p *plan) heavier(a, b topology.StorageNodeID) bool {
	return p.used[a]*p.params.Capacity(b) > p.used[b]*p.params.Capacity(a)
}

// pick a StorageNode of |zone| having room for another RepNode, given RepNode
// counts |used|. StorageNodes for which |skip| is true aren't considered.
// The StorageNode with the lowest ratio of used to total capacity is chosen,
// and ties are broken on StorageNodeID.
func (p *plan) pick(zone topology.ZoneID, used map[topology.StorageNodeID]int,
	skip func(topology.StorageNodeID) bool) (topology.StorageNodeID, bool) {

	var best topology.StorageNodeID
	var bestCap int

	for _, sn := range p.poolIn(zone) {
		var c = p.params.Capacity(sn)
		if used[sn] >= c || skip(sn) {
			continue
		}
		if best == 0 || used[sn]*bestCap < used[best]*c {
			best, bestCap = sn, c
		}
	}
	return best, best != 0
}

// assignDir returns the first storage directory of |sn| not used by one of
// its RepNodes, or the root directory ("") if all are in use.
func (p *plan) assignDir(sn topology.StorageNodeID) string {
	var snp, _ = p.params.StorageNode(sn)
	var taken = make(map[string]bool)
	for _, rn := range p.t.RepNodesOn(sn) {
		taken[rn.StorageDir] = true
	}
	for _, d := range snp.StorageDirs {
		if !taken[d.Path] {
			return d.Path
		}
	}
	return ""
}

func (p *plan) dirSize(sn topology.StorageNodeID, dir string) int64 {
	var snp, _ = p.params.StorageNode(sn)
	return snp.DirSize(dir)
}

func (p *plan) placeRN(s *topology.Shard, z *topology.Zone, sn topology.StorageNodeID) *topology.RepNode {
	var rn = s.AddRepNode(sn, topology.NodeTypeFor(z.Type), p.assignDir(sn))
	p.used[sn]++
	builderRepNodesPlacedTotal.Inc()

	p.cand.Audit("placed %s on %s (%d of %d)", rn.ID, sn, p.used[sn], p.params.Capacity(sn))
	log.WithFields(log.Fields{
		"rn":  rn.ID.String(),
		"sn":  sn.String(),
		"dir": rn.StorageDir,
	}).Debug("placed rep node")
	return rn
}

func (p *plan) removeRN(s *topology.Shard, rn *topology.RepNode) {
	delete(s.RepNodes, rn.ID)
	p.used[rn.StorageNode]--
	builderRepNodesRemovedTotal.Inc()
	p.cand.Audit("removed %s from %s", rn.ID, rn.StorageNode)
}

// fill places missing RepNodes of existing Shards within |zone|,
// or within every Zone if |zone| is zero.
func (p *plan) fill(zone topology.ZoneID) {
	for _, s := range p.t.SortedShards() {
		for _, z := range p.t.SortedZones() {
			if zone != 0 && z.ID != zone {
				continue
			}
			for n := len(p.t.RepNodesInZone(s, z.ID)); n < z.RepFactor; n++ {
				var sn, ok = p.pick(z.ID, p.used, s.HostsRepNodeOn)
				if !ok {
					p.cand.Audit("unable to place a rep node of %s in zone %s: no storage node has room",
						s.ID, z.ID)
					break
				}
				p.placeRN(s, z, sn)
			}
		}
	}
}

// addShard creates a Shard and places its RepNodes in every Zone, returning
// true. If its RepNodes can't all be placed, nothing is changed and false
// is returned.
func (p *plan) addShard() bool {
	type slot struct {
		zone *topology.Zone
		sn   topology.StorageNodeID
	}
	var used = make(map[topology.StorageNodeID]int, len(p.used))
	for sn, n := range p.used {
		used[sn] = n
	}
	var chosen = make(map[topology.StorageNodeID]bool)
	var slots []slot

	for _, z := range p.t.SortedZones() {
		for i := 0; i != z.RepFactor; i++ {
			var sn, ok = p.pick(z.ID, used, func(sn topology.StorageNodeID) bool { return chosen[sn] })
			if !ok {
				return false
			}
			used[sn]++
			chosen[sn] = true
			slots = append(slots, slot{zone: z, sn: sn})
		}
	}

	var s = p.t.AddShard()
	builderShardsCreatedTotal.Inc()
	p.cand.Audit("created shard %s", s.ID)

	for _, sl := range slots {
		p.placeRN(s, sl.zone, sl.sn)
	}
	return true
}

// trim removes RepNodes of each Shard in excess of the RepFactor of |zone|.
// RepNodes of the most loaded StorageNodes are removed first.
func (p *plan) trim(zone topology.ZoneID) {
	var rf = p.t.Zones[zone].RepFactor

	for _, s := range p.t.SortedShards() {
		for rns := p.t.RepNodesInZone(s, zone); len(rns) > rf; rns = p.t.RepNodesInZone(s, zone) {
			var victim = rns[0]
			for _, rn := range rns[1:] {
				if !p.heavier(victim.StorageNode, rn.StorageNode) {
					victim = rn
				}
			}
			p.removeRN(s, victim)
		}
	}
}

// removeShard removes |s| and returns the StorageNodes which hosted its nodes.
func (p *plan) removeShard(s *topology.Shard) []topology.StorageNodeID {
	var hosts []topology.StorageNodeID
	var seen = make(map[topology.StorageNodeID]bool)
	var add = func(sn topology.StorageNodeID) {
		if !seen[sn] {
			seen[sn] = true
			hosts = append(hosts, sn)
		}
	}
	for _, rn := range s.SortedRepNodes() {
		add(rn.StorageNode)
		p.used[rn.StorageNode]--
	}
	for _, an := range s.SortedArbNodes() {
		add(an.StorageNode)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i] < hosts[j] })

	p.t.RemoveShard(s.ID)
	builderShardsRemovedTotal.Inc()
	builderRepNodesRemovedTotal.Add(float64(len(s.RepNodes)))
	p.cand.Audit("removed shard %s with %d rep nodes and %d arbiters",
		s.ID, len(s.RepNodes), len(s.ArbNodes))

	return hosts
}

// dropShards removes |n| Shards: those owning the fewest Partitions, then
// having the most RepNodes on StorageNodes leaving the Pool, then the
// highest ShardID.
func (p *plan) dropShards(n int) {
	if n <= 0 {
		return
	}
	var counts = p.t.PartitionCounts()
	var departing = make(map[topology.ShardID]int)
	for _, s := range p.t.Shards {
		for _, rn := range s.RepNodes {
			if !p.pool.Contains(rn.StorageNode) {
				departing[s.ID]++
			}
		}
	}
	var shards = p.t.SortedShards()
	sort.SliceStable(shards, func(i, j int) bool {
		var a, b = shards[i].ID, shards[j].ID
		if counts[a] != counts[b] {
			return counts[a] < counts[b]
		} else if departing[a] != departing[b] {
			return departing[a] > departing[b]
		}
		return a > b
	})
	for _, s := range shards[:n] {
		p.removeShard(s)
	}
}

func (p *plan) placeArbiters(relocate bool) {
	for _, c := range arbiters.Place(p.t, p.params, p.pool, relocate) {
		switch {
		case c.From == 0:
			p.cand.Audit("placed %s on %s", c.ArbNode, c.To)
		case c.To == 0:
			p.cand.Audit("removed %s from %s", c.ArbNode, c.From)
		default:
			p.cand.Audit("moved %s from %s to %s", c.ArbNode, c.From, c.To)
		}
		builderArbNodeChangesTotal.Inc()
	}
}

func (p *plan) distribute() error {
	var moves, err = partitions.Distribute(p.t, p.params, p.numPartitions)
	if err != nil {
		return err
	}
	if len(moves) != 0 {
		p.cand.Audit("assigned %d of %d partitions across %d shards",
			len(moves), p.numPartitions, len(p.t.Shards))
		builderPartitionsMovedTotal.Add(float64(len(moves)))
	}
	return nil
}
