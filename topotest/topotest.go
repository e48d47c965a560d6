// Package topotest provides fixtures for tests of placement and validation.
package topotest

import (
	"fmt"

	"go.topoplan.dev/core/topology"
)

// Fixture is a Topology under construction, with its Parameters.
type Fixture struct {
	Topology *topology.Topology
	Params   *topology.Parameters
}

// New returns an empty Fixture.
func New() *Fixture {
	return &Fixture{Topology: topology.New(), Params: topology.NewParameters()}
}

// Zone adds a Zone of |typ| with replication factor |rf|.
func (f *Fixture) Zone(name string, typ topology.ZoneType, rf int, allowArbiters bool) topology.ZoneID {
	return f.Topology.AddZone(topology.Zone{
		Name:          name,
		Type:          typ,
		RepFactor:     rf,
		AllowArbiters: allowArbiters,
	}).ID
}

// StorageNodes adds |n| StorageNodes to |zone|, each having |capacity|.
func (f *Fixture) StorageNodes(zone topology.ZoneID, n, capacity int, allowArbiters bool) []topology.StorageNodeID {
	var out []topology.StorageNodeID
	for i := 0; i != n; i++ {
		out = append(out, f.StorageNode(zone, topology.StorageNodeParams{
			Capacity:      capacity,
			AllowArbiters: allowArbiters,
		}))
	}
	return out
}

// StorageNode adds a StorageNode to |zone| having parameters |snp|.
func (f *Fixture) StorageNode(zone topology.ZoneID, snp topology.StorageNodeParams) topology.StorageNodeID {
	var sn = f.Topology.AddStorageNode(zone, fmt.Sprintf("host%d.%s", len(f.Topology.StorageNodes)+1, zone))
	f.Params.StorageNodes[sn.ID] = snp
	return sn.ID
}

// Pool of all StorageNodes of the Fixture.
func (f *Fixture) Pool() topology.Pool {
	return topology.PoolOf("AllStorageNodes", f.Topology)
}

// Admin adds an admin of |typ| on |sn|.
func (f *Fixture) Admin(sn topology.StorageNodeID, typ topology.AdminType) topology.AdminID {
	var id = topology.AdminID(len(f.Params.Admins) + 1)
	f.Params.Admins = append(f.Params.Admins, topology.AdminParams{ID: id, StorageNode: sn, Type: typ})
	return id
}

// Place adds a Shard having a RepNode on each of |sns|, typed by the Zone of each.
func (f *Fixture) Place(sns ...topology.StorageNodeID) *topology.Shard {
	var s = f.Topology.AddShard()
	for _, sn := range sns {
		var typ = topology.Electable
		if z := f.Topology.ZoneOf(sn); z != nil {
			typ = topology.NodeTypeFor(z.Type)
		}
		s.AddRepNode(sn, typ, "")
	}
	return s
}

// Assign Partitions |from| through |to| (inclusive) to |shard|.
func (f *Fixture) Assign(shard topology.ShardID, from, to int) {
	for p := from; p <= to; p++ {
		f.Topology.Partitions[topology.PartitionID(p)] = shard
	}
}

// PlacementOf returns the StorageNodes hosting RepNodes of |shard|, in RepNodeID order.
func PlacementOf(t *topology.Topology, shard topology.ShardID) []topology.StorageNodeID {
	var out []topology.StorageNodeID
	for _, rn := range t.Shards[shard].SortedRepNodes() {
		out = append(out, rn.StorageNode)
	}
	return out
}
