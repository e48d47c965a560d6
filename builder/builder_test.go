package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.topoplan.dev/core/diff"
	"go.topoplan.dev/core/rules"
	"go.topoplan.dev/core/topology"
	"go.topoplan.dev/core/topotest"
)

// rf2Fixture is a Zone of replication factor two, which allows arbiters,
// and three StorageNodes of capacity two.
func rf2Fixture() (*topotest.Fixture, topology.ZoneID) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 2, true)
	f.StorageNodes(zn, 3, 2, true)
	return f, zn
}

func build(t *testing.T, f *topotest.Fixture, partitions int) *topology.Candidate {
	var b, err = New(f.Topology, "initial", f.Pool(), partitions, f.Params)
	require.NoError(t, err)
	cand, err := b.Build()
	require.NoError(t, err)
	return cand
}

func verifyPartitions(t *testing.T, topo *topology.Topology, n int) {
	require.Len(t, topo.Partitions, n)
	for p := topology.PartitionID(1); int(p) <= n; p++ {
		var s, ok = topo.Partitions[p]
		require.True(t, ok, "partition %d", p)
		require.Contains(t, topo.Shards, s, "partition %d", p)
	}
}

func TestBuildSingleZone(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 3, false)
	f.StorageNodes(zn, 3, 1, false)

	var cand = build(t, f, 10)
	var topo = cand.Topology

	require.Len(t, topo.Shards, 1)
	require.Equal(t, []topology.StorageNodeID{1, 2, 3}, topotest.PlacementOf(topo, 1))
	require.Empty(t, topo.Shards[1].ArbNodes)
	require.Equal(t, map[topology.ShardID]int{1: 10}, topo.PartitionCounts())
	require.Equal(t, "initial", cand.Name)

	var r = rules.Validate(topo, f.Params, false)
	require.Zero(t, r.NumProblems(), r.String())

	// The input Topology isn't modified.
	require.Empty(t, f.Topology.Shards)
	require.Empty(t, f.Topology.Partitions)
}

func TestBuildWithArbiters(t *testing.T) {
	var f, _ = rf2Fixture()
	var cand = build(t, f, 30)
	var topo = cand.Topology

	require.Len(t, topo.Shards, 3)
	require.Equal(t, []topology.StorageNodeID{1, 2}, topotest.PlacementOf(topo, 1))
	require.Equal(t, []topology.StorageNodeID{3, 1}, topotest.PlacementOf(topo, 2))
	require.Equal(t, []topology.StorageNodeID{2, 3}, topotest.PlacementOf(topo, 3))

	// One ArbNode per Shard, never alongside its Shard's RepNodes, and one per StorageNode.
	require.Equal(t, map[topology.StorageNodeID]int{1: 1, 2: 1, 3: 1}, topo.ArbNodeCounts())
	for _, s := range topo.SortedShards() {
		require.Len(t, s.ArbNodes, 1)
		require.False(t, s.HostsRepNodeOn(s.SortedArbNodes()[0].StorageNode))
	}
	require.Equal(t, map[topology.ShardID]int{1: 10, 2: 10, 3: 10}, topo.PartitionCounts())
	require.Equal(t, []topology.PartitionID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, topo.PartitionsOf(1))
	verifyPartitions(t, topo, 30)

	var r = rules.Validate(topo, f.Params, false)
	require.Zero(t, r.NumViolations(), r.String())

	var d = diff.Compute(f.Topology, "", cand, f.Params, diff.Options{})
	require.Equal(t, diff.Counts{
		CreatedShards:   3,
		NewRepNodes:     6,
		NewArbNodes:     3,
		MovedPartitions: 30,
	}, d.Counts())
	require.Contains(t, cand.AuditLog(), "created shard rg1")
	require.Contains(t, cand.AuditLog(), "placed rg1-an1 on sn3")
}

func TestBuildIsIdempotent(t *testing.T) {
	var f, _ = rf2Fixture()
	var first = build(t, f, 30)

	var b, err = New(first.Topology, "second", f.Pool(), 0, f.Params)
	require.NoError(t, err)
	require.Equal(t, 30, b.NumPartitions())

	second, err := b.Build()
	require.NoError(t, err)

	var d = diff.Compute(first.Topology, first.Name, second, f.Params, diff.Options{})
	require.True(t, d.IsEmpty())
	require.Equal(t, "Topology transformation from initial to second:\nNo differences in topology.\n",
		d.Display(true))
}

func TestBuildAcrossZonesWithDedicatedArbiterHost(t *testing.T) {
	var f = topotest.New()
	var z1 = f.Zone("Boston", topology.Primary, 1, false)
	var z2 = f.Zone("Chicago", topology.Primary, 1, false)
	var z3 = f.Zone("Denver", topology.Primary, 0, true)
	f.StorageNodes(z1, 2, 1, false)
	f.StorageNodes(z2, 2, 1, false)
	var arb = f.StorageNodes(z3, 1, 0, true)[0]

	var cand = build(t, f, 10)
	var topo = cand.Topology

	require.Len(t, topo.Shards, 2)
	require.Equal(t, []topology.StorageNodeID{1, 3}, topotest.PlacementOf(topo, 1))
	require.Equal(t, []topology.StorageNodeID{2, 4}, topotest.PlacementOf(topo, 2))
	require.Equal(t, map[topology.StorageNodeID]int{arb: 2}, topo.ArbNodeCounts())

	var r = rules.Validate(topo, f.Params, false)
	require.Zero(t, r.NumProblems(), r.String())
}

func TestBuildStopsAtCapacity(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 3, false)
	f.StorageNodes(zn, 2, 2, false)
	f.StorageNodes(zn, 1, 5, false)

	// Capacity supports three Shards, but only two sets of three distinct
	// StorageNodes have room.
	var cand = build(t, f, 10)
	require.Len(t, cand.Topology.Shards, 2)
	require.Contains(t, cand.AuditLog(),
		"stopped creating shards at 2 of 3: remaining capacity cannot hold a complete shard")
}

func TestRedistributeOntoAddedCapacity(t *testing.T) {
	var f, zn = rf2Fixture()
	var first = build(t, f, 30)

	var next = &topotest.Fixture{Topology: first.Topology.Copy(), Params: f.Params.Copy()}
	next.StorageNodes(zn, 3, 2, true)

	var b, err = New(next.Topology, "redistributed", next.Pool(), 30, next.Params)
	require.NoError(t, err)
	cand, err := b.Build()
	require.NoError(t, err)
	var topo = cand.Topology

	require.Len(t, topo.Shards, 6)
	require.Equal(t, []topology.StorageNodeID{4, 5}, topotest.PlacementOf(topo, 4))
	require.Equal(t, []topology.StorageNodeID{6, 4}, topotest.PlacementOf(topo, 5))
	require.Equal(t, []topology.StorageNodeID{5, 6}, topotest.PlacementOf(topo, 6))

	// Existing RepNodes and ArbNodes aren't moved.
	for id := topology.ShardID(1); id <= 3; id++ {
		require.Equal(t, topotest.PlacementOf(first.Topology, id), topotest.PlacementOf(topo, id))
	}
	require.Equal(t, map[topology.ShardID]int{1: 5, 2: 5, 3: 5, 4: 5, 5: 5, 6: 5}, topo.PartitionCounts())
	verifyPartitions(t, topo, 30)

	var d = diff.Compute(first.Topology, first.Name, cand, next.Params, diff.Options{Validate: true})
	require.Equal(t, diff.Counts{
		CreatedShards:   3,
		NewRepNodes:     6,
		NewArbNodes:     3,
		MovedPartitions: 15,
	}, d.Counts())
	require.Zero(t, d.Results.NumViolations())

	var out = d.Display(false)
	require.True(t, strings.HasPrefix(out, "Topology transformation from initial to redistributed:\n"+
		"Create 3 shards\nCreate 6 RNs\nCreate 3 ANs\nMove 15 partitions\n"), out)
}

func TestRebalanceRelocatesOntoNewStorageNodes(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 3, false)
	f.StorageNodes(zn, 3, 2, false)
	var first = build(t, f, 10)
	require.Len(t, first.Topology.Shards, 2)

	var next = &topotest.Fixture{Topology: first.Topology.Copy(), Params: f.Params.Copy()}
	next.StorageNodes(zn, 3, 2, false)

	var b, err = New(next.Topology, "rebalanced", next.Pool(), 0, next.Params)
	require.NoError(t, err)
	cand, err := b.Rebalance(0)
	require.NoError(t, err)

	require.Equal(t, []topology.StorageNodeID{1, 2, 3}, topotest.PlacementOf(cand.Topology, 1))
	require.Equal(t, []topology.StorageNodeID{4, 5, 6}, topotest.PlacementOf(cand.Topology, 2))
	require.Contains(t, cand.AuditLog(), "relocated rg2-rn1 from sn1 to sn4 (balancing zone zn1)")

	var d = diff.Compute(first.Topology, first.Name, cand, next.Params, diff.Options{})
	require.Equal(t, diff.Counts{RelocatedRepNodes: 3}, d.Counts())

	var out = d.Display(true)
	require.Contains(t, out, "Relocate 3 RNs\n")
	require.Contains(t, out, "relocate RN")
	require.Contains(t, out, "rg2-rn1")
}

func TestRebalanceFixesProximity(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 3, false)
	var sns = f.StorageNodes(zn, 4, 2, false)
	f.Place(sns[0], sns[0], sns[1])

	var b, err = New(f.Topology, "", f.Pool(), 10, f.Params)
	require.NoError(t, err)
	require.NotEmpty(t, b.Name()) // Generated.

	cand, err := b.Rebalance(zn)
	require.NoError(t, err)
	require.Equal(t, []topology.StorageNodeID{1, 3, 2}, topotest.PlacementOf(cand.Topology, 1))
	require.Contains(t, cand.AuditLog(),
		"relocated rg1-rn2 from sn1 to sn3 (co-located with another rep node of rg1)")

	var r = rules.Validate(cand.Topology, f.Params, false)
	require.Empty(t, r.Find(rules.RNProximity))

	_, err = b.Rebalance(9)
	require.EqualError(t, err, "zone zn9 doesn't exist")
}

func TestRebalanceRefusesRepFactorOne(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 1, false)
	f.StorageNodes(zn, 1, 2, false)
	var first = build(t, f, 10)
	require.Equal(t, map[topology.StorageNodeID]int{1: 2}, first.Topology.RepNodeCounts())

	var next = &topotest.Fixture{Topology: first.Topology.Copy(), Params: f.Params.Copy()}
	next.StorageNodes(zn, 1, 2, false)
	var before = next.Topology.Copy()

	var b, err = New(next.Topology, "rf1", next.Pool(), 0, next.Params)
	require.NoError(t, err)
	_, err = b.Rebalance(0)
	require.Error(t, err)
	require.True(t, topology.IsConfigError(err))
	require.Contains(t, err.Error(), "Cannot relocate RN when the repfactor is 1")
	require.True(t, strings.HasPrefix(err.Error(), "rebalance of candidate rf1: "), err.Error())

	require.Equal(t, before, next.Topology)
}

func TestRebalanceRefusesRepFactorTwoWithoutArbiters(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 2, false)
	f.StorageNodes(zn, 2, 2, false)
	var first = build(t, f, 10)
	require.Len(t, first.Topology.Shards, 2)

	var next = &topotest.Fixture{Topology: first.Topology.Copy(), Params: f.Params.Copy()}
	next.StorageNodes(zn, 1, 2, false)

	var b, err = New(next.Topology, "rf2", next.Pool(), 0, next.Params)
	require.NoError(t, err)
	_, err = b.Rebalance(0)
	require.Error(t, err)
	require.True(t, topology.IsConfigError(err))
	require.Contains(t, err.Error(), "Cannot relocate RN when the repfactor is 2 and arbiters are not enabled")
}

func TestContract(t *testing.T) {
	var f, _ = rf2Fixture()
	var first = build(t, f, 30)

	var b, err = New(first.Topology, "contracted", topology.NewPool("smaller", 1, 2), 0, f.Params, ForContraction())
	require.NoError(t, err)
	cand, err := b.Contract()
	require.NoError(t, err)
	var topo = cand.Topology

	require.Len(t, topo.Shards, 2)
	require.Contains(t, topo.Shards, topology.ShardID(1))
	require.Contains(t, topo.Shards, topology.ShardID(2))
	require.Equal(t, []topology.StorageNodeID{1, 2}, topo.InUse())
	require.Equal(t, []topology.StorageNodeID{2, 1}, topotest.PlacementOf(topo, 2))
	require.Equal(t, map[topology.ShardID]int{1: 15, 2: 15}, topo.PartitionCounts())
	verifyPartitions(t, topo, 30)

	var r = rules.Validate(topo, f.Params, false)
	require.Empty(t, r.Find(rules.OverCapacity))
	require.Empty(t, r.Find(rules.RNProximity))
	require.Empty(t, r.Find(rules.InsufficientRNs))

	var d = diff.Compute(first.Topology, first.Name, cand, f.Params, diff.Options{})
	require.Equal(t, diff.Counts{
		RemovedShards:     1,
		RelocatedRepNodes: 1,
		RemovedRepNodes:   2,
		RelocatedArbNodes: 1,
		RemovedArbNodes:   1,
		MovedPartitions:   10,
	}, d.Counts())
}

func TestContractErrors(t *testing.T) {
	var f, zn = rf2Fixture()
	var first = build(t, f, 30)
	var next = &topotest.Fixture{Topology: first.Topology.Copy(), Params: f.Params.Copy()}
	next.StorageNodes(zn, 1, 2, true)

	var b, err = New(next.Topology, "c", topology.NewPool("p", 1, 2, 4), 0, next.Params, ForContraction())
	require.NoError(t, err)
	_, err = b.Contract()
	require.EqualError(t, err,
		"contracting storage node pool p[sn1 sn2 sn4] includes storage nodes which are not in use: sn4")

	b, err = New(next.Topology, "c", topology.NewPool("p", 1), 0, next.Params, ForContraction())
	require.NoError(t, err)
	_, err = b.Contract()
	require.EqualError(t, err, "Insufficient storage nodes to support current zones: "+
		"zone Boston (zn1) has replication factor 2, but only 1 usable storage nodes")
	require.True(t, topology.IsConfigError(err))
}

func TestContractFailsWhenRepNodeCannotLeave(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 3, false)
	var small = []topology.StorageDir{{Path: "/d1", Size: 1 << 30}, {Path: "/d2", Size: 1 << 30}}
	for i := 0; i != 3; i++ {
		f.StorageNode(zn, topology.StorageNodeParams{Capacity: 2, StorageDirs: small})
	}
	var big = f.StorageNode(zn, topology.StorageNodeParams{Capacity: 1,
		StorageDirs: []topology.StorageDir{{Path: "/d1", Size: 100 << 30}}})

	var rg1 = f.Topology.AddShard()
	rg1.AddRepNode(1, topology.Electable, "/d1")
	rg1.AddRepNode(2, topology.Electable, "/d1")
	rg1.AddRepNode(big, topology.Electable, "/d1")
	var rg2 = f.Topology.AddShard()
	rg2.AddRepNode(1, topology.Electable, "/d2")
	rg2.AddRepNode(2, topology.Electable, "/d2")
	rg2.AddRepNode(3, topology.Electable, "/d1")
	f.Assign(rg1.ID, 1, 5)
	f.Assign(rg2.ID, 6, 10)
	var before = f.Topology.Copy()

	// sn3 has room for rg1-rn3, but only within a directory too small for it.
	var b, err = New(f.Topology, "smaller", topology.NewPool("p", 1, 2, 3), 0, f.Params, ForContraction())
	require.NoError(t, err)
	cand, err := b.Contract()
	require.Nil(t, cand)
	require.EqualError(t, err, "contract of candidate smaller: unable to relocate rg1-rn3 "+
		"from departing storage node sn4: no storage node of zone zn1 can host it")
	require.True(t, topology.IsConfigError(err))
	require.Equal(t, before, f.Topology)
}

func TestContractRefusesRelocationAtRepFactorOne(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 1, false)
	for _, sn := range f.StorageNodes(zn, 3, 1, false) {
		f.Place(sn)
	}
	f.Assign(1, 1, 4)
	f.Assign(2, 5, 7)
	f.Assign(3, 8, 10)
	var before = f.Topology.Copy()

	// rg3 is dropped, but rg1 must leave sn1.
	var b, err = New(f.Topology, "rf1", topology.NewPool("p", 2, 3), 0, f.Params, ForContraction())
	require.NoError(t, err)
	_, err = b.Contract()
	require.Error(t, err)
	require.True(t, topology.IsConfigError(err))
	require.Equal(t, "contract of candidate rf1: relocating rg1-rn1 (departing the pool): "+
		"Cannot relocate RN when the repfactor is 1", err.Error())
	require.Equal(t, before, f.Topology)
}

func TestContractRefusesRelocationAtRepFactorTwoWithoutArbiters(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 2, false)
	var sns = f.StorageNodes(zn, 4, 1, false)
	f.Place(sns[0], sns[1])
	f.Place(sns[2], sns[3])
	f.Assign(1, 1, 6)
	f.Assign(2, 7, 10)
	var before = f.Topology.Copy()

	// rg2 is dropped, but rg1 must leave sn1.
	var b, err = New(f.Topology, "rf2", topology.NewPool("p", 2, 3, 4), 0, f.Params, ForContraction())
	require.NoError(t, err)
	_, err = b.Contract()
	require.Error(t, err)
	require.True(t, topology.IsConfigError(err))
	require.Equal(t, "contract of candidate rf2: relocating rg1-rn1 (departing the pool): "+
		"Cannot relocate RN when the repfactor is 2 and arbiters are not enabled", err.Error())
	require.Equal(t, before, f.Topology)
}

func secondaryFixture() (*topotest.Fixture, topology.ZoneID, topology.ZoneID) {
	var f, z1 = rf2Fixture()
	var z2 = f.Zone("Seattle", topology.Secondary, 0, false)
	f.StorageNodes(z2, 3, 1, false)
	return f, z1, z2
}

func TestChangeRepFactorOfSecondaryZone(t *testing.T) {
	var f, _, z2 = secondaryFixture()
	var first = build(t, f, 30)
	require.Len(t, first.Topology.Shards, 3)

	var b, err = New(first.Topology, "grown", f.Pool(), 0, f.Params)
	require.NoError(t, err)
	grown, err := b.ChangeRepFactor(1, z2)
	require.NoError(t, err)

	require.Equal(t, 1, grown.Topology.Zones[z2].RepFactor)
	require.Equal(t, []topology.StorageNodeID{1, 2, 4}, topotest.PlacementOf(grown.Topology, 1))
	require.Equal(t, []topology.StorageNodeID{3, 1, 5}, topotest.PlacementOf(grown.Topology, 2))
	require.Equal(t, []topology.StorageNodeID{2, 3, 6}, topotest.PlacementOf(grown.Topology, 3))
	require.Equal(t, topology.SecondaryNode,
		grown.Topology.Shards[1].RepNodes[topology.RepNodeID{Shard: 1, Node: 3}].Type)
	require.Contains(t, grown.AuditLog(), "changed replication factor of zone zn2 from 0 to 1")

	var r = rules.Validate(grown.Topology, f.Params, false)
	require.Zero(t, r.NumViolations(), r.String())
	require.NoError(t, rules.ValidateTransition(first.Topology, grown.Topology, f.Params, false))

	var d = diff.Compute(first.Topology, first.Name, grown, f.Params, diff.Options{})
	require.Equal(t, diff.Counts{NewRepNodes: 3, ChangedZones: 1}, d.Counts())
	require.Contains(t, d.Display(true),
		"zone Seattle (zn2): repfactor 0 -> 1, allow arbiters false -> false, master affinity false -> false\n")

	// Shrink it back.
	b, err = New(grown.Topology, "shrunk", f.Pool(), 0, f.Params)
	require.NoError(t, err)
	shrunk, err := b.ChangeRepFactor(0, z2)
	require.NoError(t, err)
	for id := topology.ShardID(1); id <= 3; id++ {
		require.Equal(t, topotest.PlacementOf(first.Topology, id), topotest.PlacementOf(shrunk.Topology, id))
	}
	r = rules.Validate(shrunk.Topology, f.Params, false)
	require.Zero(t, r.NumViolations(), r.String())
}

func TestChangeRepFactorOfPrimaryZone(t *testing.T) {
	var f, z1 = rf2Fixture()
	var first = build(t, f, 30)

	// Grant room for a third RepNode on each StorageNode.
	var params = f.Params.Copy()
	for id, snp := range params.StorageNodes {
		snp.Capacity = 3
		params.StorageNodes[id] = snp
	}
	var b, err = New(first.Topology, "rf3", f.Pool(), 0, params)
	require.NoError(t, err)
	cand, err := b.ChangeRepFactor(3, z1)
	require.NoError(t, err)

	for _, s := range cand.Topology.SortedShards() {
		require.Len(t, s.RepNodes, 3)
		require.Empty(t, s.ArbNodes) // No longer needed.
	}
	require.Equal(t, map[topology.StorageNodeID]int{1: 3, 2: 3, 3: 3}, cand.Topology.RepNodeCounts())

	var r = rules.Validate(cand.Topology, params, false)
	require.Zero(t, r.NumViolations(), r.String())

	_, err = b.ChangeRepFactor(1, z1)
	require.EqualError(t, err, "cannot reduce the replication factor of primary zone Boston (zn1) from 2 to 1")
	_, err = b.ChangeRepFactor(MaxRepFactor+1, z1)
	require.EqualError(t, err, "invalid replication factor 21 for zone zn1 (expected 0 through 20)")
	_, err = b.ChangeRepFactor(1, 7)
	require.EqualError(t, err, "zone zn7 doesn't exist")
	require.True(t, topology.IsConfigError(err))

	// The Builder's source is unchanged by prior operations.
	require.Equal(t, 2, first.Topology.Zones[z1].RepFactor)
}

func TestRemoveFailedShard(t *testing.T) {
	var f, _ = rf2Fixture()
	var first = build(t, f, 30)

	var b, err = New(first.Topology, "removed", f.Pool(), 0, f.Params)
	require.NoError(t, err)
	cand, err := b.RemoveFailedShard(2)
	require.NoError(t, err)

	require.Len(t, cand.Topology.Shards, 2)
	require.Equal(t, map[topology.ShardID]int{1: 15, 3: 15}, cand.Topology.PartitionCounts())
	verifyPartitions(t, cand.Topology, 30)
	require.Empty(t, cand.RemovedAdmins)

	_, err = b.RemoveFailedShard(9)
	require.EqualError(t, err, "shard rg9 doesn't exist")
}

func TestRemoveFailedShardReleasesAdmins(t *testing.T) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 1, false)
	var sns = f.StorageNodes(zn, 2, 1, false)
	f.Admin(sns[0], topology.PrimaryAdmin)
	var admin = f.Admin(sns[1], topology.PrimaryAdmin)
	var first = build(t, f, 10)
	require.Equal(t, []topology.StorageNodeID{2}, topotest.PlacementOf(first.Topology, 2))

	var b, err = New(first.Topology, "removed", f.Pool(), 0, f.Params)
	require.NoError(t, err)
	cand, err := b.RemoveFailedShard(2)
	require.NoError(t, err)

	require.Equal(t, []topology.AdminID{admin}, cand.RemovedAdmins)
	require.Equal(t, map[topology.ShardID]int{1: 10}, cand.Topology.PartitionCounts())
	require.Contains(t, cand.AuditLog(), "removed admin2 of sn2, which hosts no remaining nodes")

	var d = diff.Compute(first.Topology, first.Name, cand, f.Params, diff.Options{})
	require.Equal(t, diff.Counts{RemovedShards: 1, RemovedRepNodes: 1, MovedPartitions: 5}, d.Counts())
	require.Contains(t, d.Display(false), "Remove 1 admin\n")
	require.Contains(t, d.Display(true), "remove admins: admin2\n")

	// A sole remaining Shard cannot be removed.
	b, err = New(cand.Topology, "last", topology.NewPool("p", 1, 2), 0, f.Params)
	require.NoError(t, err)
	_, err = b.RemoveFailedShard(1)
	require.EqualError(t, err, "removing shard rg1 would leave zero shards")
}

func TestVerifyErrors(t *testing.T) {
	var f, zn = rf2Fixture()
	var first = build(t, f, 30)

	var cases = []struct {
		topo  *topology.Topology
		pool  topology.Pool
		parts int
		err   string
	}{
		{
			topo: first.Topology,
			pool: topology.NewPool("empty"),
			err:  "candidate c: storage node pool empty is empty",
		},
		{
			topo: first.Topology,
			pool: topology.NewPool("p", 1, 2, 3, 8),
			err:  "candidate c: storage node pool p[sn1 sn2 sn3 sn8] includes storage nodes not in the topology: sn8",
		},
		{
			topo: first.Topology,
			pool: topology.NewPool("p", 1, 2),
			err:  "candidate c: storage node pool p[sn1 sn2] omits storage nodes which host nodes of the topology: sn3",
		},
		{
			topo:  first.Topology,
			pool:  f.Pool(),
			parts: 40,
			err:   "candidate c: cannot change the number of partitions from 30 to 40",
		},
		{
			topo:  f.Topology,
			pool:  f.Pool(),
			parts: 2,
			err:   "candidate c: 2 partitions cannot cover the 3 shards which storage node pool AllStorageNodes[sn1 sn2 sn3] (capacity 6) may support",
		},
		{
			topo:  f.Topology,
			pool:  f.Pool(),
			parts: topology.MaxPartitions + 1,
			err:   "candidate c: invalid number of partitions 1048577 (expected 1 through 1048576)",
		},
	}
	for _, tc := range cases {
		var _, err = New(tc.topo, "c", tc.pool, tc.parts, f.Params)
		require.EqualError(t, err, tc.err)
		require.True(t, topology.IsConfigError(err))
	}

	// StorageNodes without parameters.
	var next = first.Topology.Copy()
	next.AddStorageNode(zn, "unconfigured")
	var _, err = New(next, "c", topology.PoolOf("all", next), 0, f.Params)
	require.EqualError(t, err, "candidate c: storage nodes have no parameters: sn4")

	// RepNodes placed on StorageNodes the topology doesn't know.
	next = first.Topology.Copy()
	next.Shards[1].RepNodes[topology.RepNodeID{Shard: 1, Node: 1}].StorageNode = 9
	_, err = New(next, "c", f.Pool(), 0, f.Params)
	require.EqualError(t, err, "candidate c: rep node rg1-rn1 is placed on storage node sn9, which isn't in the topology")

	// Partitions must be numbered 1 through their count.
	var sparse = topotest.New()
	for _, sn := range sparse.StorageNodes(sparse.Zone("Boston", topology.Primary, 1, false), 3, 1, false) {
		sparse.Place(sn)
	}
	sparse.Assign(1, 1, 1)
	sparse.Assign(2, 2, 2)
	sparse.Assign(3, 5, 5)
	_, err = New(sparse.Topology, "c", sparse.Pool(), 0, sparse.Params)
	require.EqualError(t, err, "candidate c: partitions must be numbered 1 through 3, but the topology has 5")
	require.True(t, topology.IsConfigError(err))

	// Topologies without a usable primary Zone.
	var sec = topotest.New()
	sec.StorageNodes(sec.Zone("Seattle", topology.Secondary, 1, false), 2, 1, false)
	_, err = New(sec.Topology, "c", sec.Pool(), 10, sec.Params)
	require.EqualError(t, err, "candidate c: secondary zone Seattle (zn1) requires a primary zone "+
		"with a replication factor greater than zero")

	var zero = topotest.New()
	zero.StorageNodes(zero.Zone("Boston", topology.Primary, 0, false), 2, 1, false)
	_, err = New(zero.Topology, "c", zero.Pool(), 10, zero.Params)
	require.EqualError(t, err, "candidate c: topology has no primary zone with a replication factor greater than zero")
}
