// Package arbiters decides which Shards of a Topology require an ArbNode to
// reach a voting majority, selects the Zone and StorageNodes hosting them,
// and repairs ArbNode placements which have become invalid.
package arbiters

import (
	"sort"

	log "github.com/sirupsen/logrus"
	"go.topoplan.dev/core/topology"
)

// Needed returns true if Shards of |t| require an ArbNode. That's the case
// when the summed RepFactor of Primary Zones is even, or when a Primary Zone
// configured with a zero RepFactor exists to host arbiters.
func Needed(t *topology.Topology) bool {
	var rf = t.PrimaryRepFactor()
	if rf == 0 {
		return false
	} else if rf%2 == 0 {
		return true
	}
	for _, z := range t.Zones {
		if z.Type == topology.Primary && z.RepFactor == 0 && z.AllowArbiters {
			return true
		}
	}
	return false
}

// Eligible returns true if StorageNode |sn| may host an ArbNode: it's a
// member of |pool| (or |pool| is nil), it allows arbiters, and so does its Zone.
func Eligible(t *topology.Topology, params *topology.Parameters, pool *topology.Pool, sn topology.StorageNodeID) bool {
	var node, ok = t.StorageNodes[sn]
	if !ok {
		return false
	} else if pool != nil && !pool.Contains(sn) {
		return false
	} else if z := t.Zones[node.Zone]; z == nil || !z.AllowArbiters {
		return false
	}
	return params.AllowsArbiters(sn)
}

// EligibleIn returns StorageNodes of |zone| which are Eligible, in order.
func EligibleIn(t *topology.Topology, params *topology.Parameters, pool *topology.Pool, zone topology.ZoneID) []topology.StorageNodeID {
	var out []topology.StorageNodeID
	for _, sn := range t.StorageNodesIn(zone) {
		if Eligible(t, params, pool, sn.ID) {
			out = append(out, sn.ID)
		}
	}
	return out
}

// PreferredHosts returns the Eligible StorageNodes of |zone| which are
// preferred for hosting ArbNodes: those having zero capacity (dedicated
// arbiter hosts) if any exist, and otherwise all Eligible StorageNodes.
func PreferredHosts(t *topology.Topology, params *topology.Parameters, pool *topology.Pool, zone topology.ZoneID) []topology.StorageNodeID {
	var all = EligibleIn(t, params, pool, zone)
	var dedicated []topology.StorageNodeID
	for _, sn := range all {
		if params.Capacity(sn) == 0 {
			dedicated = append(dedicated, sn)
		}
	}
	if len(dedicated) != 0 {
		return dedicated
	}
	return all
}

// SelectZone returns the Zone which should host ArbNodes. Candidate Zones
// allow arbiters and have at least one Eligible StorageNode. They're ordered
// on descending count of Eligible StorageNodes, then Zones having a zero
// RepFactor, then Primary before Secondary Zones, and finally on ZoneID.
func SelectZone(t *topology.Topology, params *topology.Parameters, pool *topology.Pool) (topology.ZoneID, bool) {
	type candidate struct {
		zone  *topology.Zone
		count int
	}
	var cands []candidate

	for _, z := range t.SortedZones() {
		if !z.AllowArbiters {
			continue
		}
		if n := len(EligibleIn(t, params, pool, z.ID)); n != 0 {
			cands = append(cands, candidate{zone: z, count: n})
		}
	}
	if len(cands) == 0 {
		return 0, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		var a, b = cands[i], cands[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if za, zb := a.zone.RepFactor == 0, b.zone.RepFactor == 0; za != zb {
			return za
		}
		if a.zone.Type != b.zone.Type {
			return a.zone.Type == topology.Primary
		}
		return a.zone.ID < b.zone.ID
	})
	return cands[0].zone.ID, true
}

// Spread returns the minimum and maximum number of ArbNodes hosted by any of
// the PreferredHosts of |zone|.
func Spread(t *topology.Topology, params *topology.Parameters, pool *topology.Pool, zone topology.ZoneID) (lo, hi int) {
	var counts = t.ArbNodeCounts()
	for i, sn := range PreferredHosts(t, params, pool, zone) {
		if c := counts[sn]; i == 0 {
			lo, hi = c, c
		} else {
			lo, hi = min(lo, c), max(hi, c)
		}
	}
	return lo, hi
}

// Change of an ArbNode placement. From is zero for an added ArbNode,
// and To is zero for a removed one.
type Change struct {
	ArbNode  topology.ArbNodeID
	From, To topology.StorageNodeID
}

// Place updates ArbNodes of |t| so that each Shard has exactly one ArbNode
// if they're Needed, and none otherwise. Valid placements are preserved.
// Missing or invalid ones are placed within the Zone chosen by SelectZone.
// If |relocate|, ArbNodes outside of that Zone, or sharing a StorageNode with
// a RepNode of their Shard where an alternative exists, are moved, and ArbNode
// counts of the preferred hosts are levelled.
func Place(t *topology.Topology, params *topology.Parameters, pool topology.Pool, relocate bool) []Change {
	var p = placer{
		t:      t,
		params: params,
		pool:   &pool,
		counts: t.ArbNodeCounts(),
	}
	var zone, ok = SelectZone(t, params, &pool)

	if !Needed(t) || !ok {
		if Needed(t) {
			log.WithField("pool", pool.String()).Warn("arbiters are needed, but no zone can host them")
		}
		for _, s := range t.SortedShards() {
			for _, an := range s.SortedArbNodes() {
				p.remove(s, an)
			}
		}
		return p.changes
	}
	p.zone = zone

	for _, s := range t.SortedShards() {
		var ans = s.SortedArbNodes()
		for _, an := range ans[min(1, len(ans)):] {
			p.remove(s, an) // Excess.
		}
		if len(ans) == 0 {
			if sn, ok := p.pick(s); ok {
				var an = s.AddArbNode(sn)
				p.counts[sn]++
				p.changes = append(p.changes, Change{ArbNode: an.ID, To: sn})
			}
			continue
		}
		var an = ans[0]
		if !Eligible(t, params, &pool, an.StorageNode) || relocate && p.misplaced(s, an) {
			p.counts[an.StorageNode]--
			if sn, ok := p.pick(s); ok && sn != an.StorageNode {
				p.changes = append(p.changes, Change{ArbNode: an.ID, From: an.StorageNode, To: sn})
				an.StorageNode = sn
				p.counts[sn]++
			} else if ok {
				p.counts[sn]++ // Current placement remains the best available.
			} else {
				p.counts[an.StorageNode]++
				p.remove(s, an)
			}
		}
	}
	if relocate {
		p.level()
	}

	if len(p.changes) != 0 {
		log.WithFields(log.Fields{
			"zone":    zone.String(),
			"changes": len(p.changes),
		}).Debug("updated arbiter placements")
	}
	return p.changes
}

type placer struct {
	t       *topology.Topology
	params  *topology.Parameters
	pool    *topology.Pool
	zone    topology.ZoneID
	counts  map[topology.StorageNodeID]int
	changes []Change
}

func (p *placer) remove(s *topology.Shard, an *topology.ArbNode) {
	delete(s.ArbNodes, an.ID)
	p.counts[an.StorageNode]--
	p.changes = append(p.changes, Change{ArbNode: an.ID, From: an.StorageNode})
}

// pick an Eligible StorageNode of the hosting Zone for an ArbNode of |s|.
// StorageNodes not hosting a RepNode of |s| are preferred, then dedicated
// (zero-capacity) StorageNodes, then those hosting the fewest ArbNodes.
func (p *placer) pick(s *topology.Shard) (topology.StorageNodeID, bool) {
	var best topology.StorageNodeID
	var bestKey [3]int

	for _, sn := range EligibleIn(p.t, p.params, p.pool, p.zone) {
		var key [3]int
		if s.HostsRepNodeOn(sn) {
			key[0] = 1
		}
		if p.params.Capacity(sn) != 0 {
			key[1] = 1
		}
		key[2] = p.counts[sn]

		if best == 0 || lessKey(key, bestKey) {
			best, bestKey = sn, key
		}
	}
	return best, best != 0
}

// misplaced returns true if |an| is outside of the hosting Zone, or shares a
// StorageNode with a RepNode of |s| while an alternative StorageNode exists.
func (p *placer) misplaced(s *topology.Shard, an *topology.ArbNode) bool {
	if z := p.t.ZoneOf(an.StorageNode); z == nil || z.ID != p.zone {
		return true
	} else if !s.HostsRepNodeOn(an.StorageNode) {
		return false
	}
	for _, sn := range EligibleIn(p.t, p.params, p.pool, p.zone) {
		if !s.HostsRepNodeOn(sn) {
			return true
		}
	}
	return false
}

// level moves ArbNodes from the most- to the least-loaded preferred hosts
// until their counts differ by at most one, or no further move is possible.
func (p *placer) level() {
	var hosts = PreferredHosts(p.t, p.params, p.pool, p.zone)
	if len(hosts) < 2 {
		return
	}
	for round := 0; round != len(p.t.Shards); round++ {
		var lo, hi = hosts[0], hosts[0]
		for _, sn := range hosts {
			if p.counts[sn] < p.counts[lo] {
				lo = sn
			}
			if p.counts[sn] >= p.counts[hi] {
				hi = sn
			}
		}
		if p.counts[hi]-p.counts[lo] <= 1 {
			return
		}
		var moved bool
		for _, an := range p.t.ArbNodesOn(hi) {
			var s = p.t.Shards[an.ID.Shard]
			if s.HostsNodeOn(lo) {
				continue
			}
			p.changes = append(p.changes, Change{ArbNode: an.ID, From: hi, To: lo})
			an.StorageNode = lo
			p.counts[hi]--
			p.counts[lo]++
			moved = true
			break
		}
		if !moved {
			return
		}
	}
}

func lessKey(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
