package builder

import (
	log "github.com/sirupsen/logrus"
	"go.topoplan.dev/core/arbiters"
	"go.topoplan.dev/core/topology"
)

// relocate moves RepNodes within |zone| (or all Zones, if zero) to correct,
// in order: RepNodes on StorageNodes leaving the Pool, over-capacity
// StorageNodes, Shards with co-located RepNodes, and finally imbalance
// between the StorageNodes of each Zone. A RepNode keeps its RepNodeID when
// moved. A RepNode which cannot leave a departing StorageNode is an error;
// other problems which can't be corrected are left in place and audited.
func (p *plan) relocate(zone topology.ZoneID) error {
	var inScope = func(sn topology.StorageNodeID) bool {
		var z = p.t.ZoneOf(sn)
		return z != nil && (zone == 0 || z.ID == zone)
	}

	for _, s := range p.t.SortedShards() {
		for _, rn := range s.SortedRepNodes() {
			if !inScope(rn.StorageNode) || p.pool.Contains(rn.StorageNode) {
				continue
			}
			var sn, zone = rn.StorageNode, p.t.ZoneOf(rn.StorageNode).ID
			if moved, err := p.move(s, rn, "departing the pool"); err != nil {
				return err
			} else if !moved {
				return topology.NewConfigError(
					"unable to relocate %s from departing storage node %s: no storage node of zone %s can host it",
					rn.ID, sn, zone)
			}
		}
	}

	for _, sn := range p.t.SortedStorageNodes() {
		if !inScope(sn.ID) {
			continue
		}
		for p.used[sn.ID] > p.params.Capacity(sn.ID) {
			if moved, err := p.moveFrom(sn.ID, "over capacity"); err != nil {
				return err
			} else if !moved {
				break
			}
		}
	}

	for _, s := range p.t.SortedShards() {
		var seen = make(map[topology.StorageNodeID]bool)
		for _, rn := range s.SortedRepNodes() {
			if !seen[rn.StorageNode] {
				seen[rn.StorageNode] = true
				continue
			} else if !inScope(rn.StorageNode) {
				continue
			}
			if _, err := p.move(s, rn, "co-located with another rep node of "+s.ID.String()); err != nil {
				return err
			}
		}
	}

	for _, z := range p.t.SortedZones() {
		if zone != 0 && z.ID != zone {
			continue
		}
		for round := 0; round != len(p.t.Shards)*p.t.TotalRepFactor(); round++ {
			if moved, err := p.balance(z); err != nil {
				return err
			} else if !moved {
				break
			}
		}
	}
	return nil
}

// checkRelocatable returns an error if a RepNode of Zone |z| may not be
// relocated without risking loss of quorum while it's moved.
func (p *plan) checkRelocatable(z *topology.Zone) error {
	if z.Type != topology.Primary {
		return nil
	}
	switch rf := p.t.PrimaryRepFactor(); {
	case rf == 1:
		return topology.NewConfigError("Cannot relocate RN when the repfactor is 1")
	case rf == 2:
		if _, ok := arbiters.SelectZone(p.t, p.params, &p.pool); !ok {
			return topology.NewConfigError("Cannot relocate RN when the repfactor is 2 and arbiters are not enabled")
		}
	}
	return nil
}

// fits returns whether |rn| of |s| may move to |sn|: |sn| doesn't already host
// a RepNode of |s|, and the directory |rn| would be assigned on |sn| is at
// least as large as its current one, where both sizes are known.
func (p *plan) fits(s *topology.Shard, rn *topology.RepNode, sn topology.StorageNodeID) bool {
	if sn == rn.StorageNode || s.HostsRepNodeOn(sn) {
		return false
	}
	var size = p.dirSize(rn.StorageNode, rn.StorageDir)
	if size == 0 {
		return true
	}
	var dst = p.dirSize(sn, p.assignDir(sn))
	return dst == 0 || dst >= size
}

// move |rn| of |s| to the least-loaded StorageNode of its Zone which fits it.
func (p *plan) move(s *topology.Shard, rn *topology.RepNode, reason string) (bool, error) {
	var z = p.t.ZoneOf(rn.StorageNode)
	if err := p.checkRelocatable(z); err != nil {
		return false, topology.ExtendContext(err, "relocating %s (%s)", rn.ID, reason)
	}
	var sn, ok = p.pick(z.ID, p.used, func(sn topology.StorageNodeID) bool { return !p.fits(s, rn, sn) })
	if !ok {
		p.cand.Audit("unable to relocate %s from %s (%s): no storage node of zone %s can host it",
			rn.ID, rn.StorageNode, reason, z.ID)
		return false, nil
	}
	p.moveTo(rn, sn, reason)
	return true, nil
}

// moveFrom relocates one RepNode of |sn|, trying the most recently
// placed RepNode first.
func (p *plan) moveFrom(sn topology.StorageNodeID, reason string) (bool, error) {
	var rns = p.t.RepNodesOn(sn)
	for i := len(rns) - 1; i >= 0; i-- {
		if moved, err := p.move(p.t.Shards[rns[i].ID.Shard], rns[i], reason); moved || err != nil {
			return moved, err
		}
	}
	return false, nil
}

// balance moves one RepNode of Zone |z| from its most loaded StorageNode onto
// its least loaded one having room, if that strictly improves their balance.
func (p *plan) balance(z *topology.Zone) (bool, error) {
	var dst, ok = p.pick(z.ID, p.used, func(topology.StorageNodeID) bool { return false })
	if !ok {
		return false, nil
	}
	var dstCap = p.params.Capacity(dst)

	for _, src := range p.heaviestIn(z.ID) {
		if src == dst {
			continue
		}
		// Moving improves balance only if |src| remains at least as loaded as |dst|.
		if p.used[src]*dstCap <= (p.used[dst]+1)*p.params.Capacity(src) {
			return false, nil
		}
		var rns = p.t.RepNodesOn(src)
		for i := len(rns) - 1; i >= 0; i-- {
			var s = p.t.Shards[rns[i].ID.Shard]
			if !p.fits(s, rns[i], dst) {
				continue
			}
			if err := p.checkRelocatable(z); err != nil {
				return false, topology.ExtendContext(err, "relocating %s (balancing zone %s)", rns[i].ID, z.ID)
			}
			p.moveTo(rns[i], dst, "balancing zone "+z.ID.String())
			return true, nil
		}
	}
	return false, nil
}

// heaviestIn returns Pool StorageNodes of |zone| having non-zero capacity,
// most loaded first.
func (p *plan) heaviestIn(zone topology.ZoneID) []topology.StorageNodeID {
	var out []topology.StorageNodeID
	for _, sn := range p.poolIn(zone) {
		if p.params.Capacity(sn) != 0 {
			out = append(out, sn)
		}
	}
	// Insertion sort keeps StorageNodeID order among equally loaded nodes.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && p.heavier(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (p *plan) moveTo(rn *topology.RepNode, sn topology.StorageNodeID, reason string) {
	var from = rn.StorageNode

	rn.StorageNode, rn.StorageDir = sn, p.assignDir(sn)
	p.used[from]--
	p.used[sn]++
	builderRepNodesRelocatedTotal.Inc()

	p.cand.Audit("relocated %s from %s to %s (%s)", rn.ID, from, sn, reason)
	log.WithFields(log.Fields{
		"rn":     rn.ID.String(),
		"from":   from.String(),
		"to":     sn.String(),
		"reason": reason,
	}).Debug("relocated rep node")
}
