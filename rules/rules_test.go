package rules

import (
	"bytes"
	"testing"

	"go.topoplan.dev/core/topology"
	"go.topoplan.dev/core/topotest"
	gc "gopkg.in/check.v1"
)

type RulesSuite struct{}

// deployedFixture is a correct, fully sized RF2 Topology of three
// StorageNodes, with an ArbNode per Shard and nine Partitions.
func deployedFixture() *topotest.Fixture {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 2, true)
	for i := 0; i != 3; i++ {
		f.StorageNode(zn, topology.StorageNodeParams{
			Capacity:      2,
			AllowArbiters: true,
			RootDirSize:   50 << 30,
			StorageDirs:   []topology.StorageDir{{Path: "/d1", Size: 100 << 30}, {Path: "/d2", Size: 100 << 30}},
		})
	}
	type rn struct {
		sn  topology.StorageNodeID
		dir string
	}
	var place = func(an topology.StorageNodeID, rns ...rn) {
		var s = f.Topology.AddShard()
		for _, r := range rns {
			s.AddRepNode(r.sn, topology.Electable, r.dir)
		}
		s.AddArbNode(an)
	}
	place(3, rn{1, "/d1"}, rn{2, "/d1"})
	place(2, rn{3, "/d1"}, rn{1, "/d2"})
	place(1, rn{2, "/d2"}, rn{3, "/d2"})

	f.Assign(1, 1, 3)
	f.Assign(2, 4, 6)
	f.Assign(3, 7, 9)
	f.Admin(1, topology.PrimaryAdmin)
	f.Admin(2, topology.PrimaryAdmin)
	return f
}

func (s *RulesSuite) TestCorrectTopologyHasNoProblems(c *gc.C) {
	var f = deployedFixture()

	// Each StorageNode uses both of its storage directories.
	for sn := topology.StorageNodeID(1); sn <= 3; sn++ {
		var dirs = map[string]bool{}
		for _, rn := range f.Topology.RepNodesOn(sn) {
			dirs[rn.StorageDir] = true
		}
		c.Check(dirs, gc.DeepEquals, map[string]bool{"/d1": true, "/d2": true})
	}

	var r = Validate(f.Topology, f.Params, false)
	c.Check(r.Problems(), gc.HasLen, 0)

	r = Validate(f.Topology, f.Params, true)
	c.Check(r.Problems(), gc.HasLen, 0)
	c.Check(r.String(), gc.Equals, "Validation: 0 violations, 0 warnings\n")
}

func (s *RulesSuite) TestZonesWithoutPrimary(c *gc.C) {
	var f = topotest.New()
	f.Zone("Seattle", topology.Secondary, 1, false)

	var r = Validate(f.Topology, f.Params, false)
	c.Check(r.Problems(), gc.DeepEquals, []Problem{
		{Kind: EmptyZone, Zone: 1},
		{Kind: NoPrimaryDC},
	})
	c.Check(r.NumViolations(), gc.Equals, 2)
}

func (s *RulesSuite) TestCapacity(c *gc.C) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 1, false)
	var sn1 = f.StorageNodes(zn, 1, 1, false)[0]
	f.StorageNodes(zn, 1, 2, false)
	f.Place(sn1)
	f.Place(sn1)

	var r = Validate(f.Topology, f.Params, false)
	c.Check(r.Problems(), gc.DeepEquals, []Problem{
		{Kind: OverCapacity, StorageNode: 1, Expected: 1, Actual: 2},
		{Kind: MultipleRNsInRoot, StorageNode: 1, Expected: 1, Actual: 2},
		{Kind: UnderCapacity, StorageNode: 2, Expected: 2, Actual: 0},
	})
	c.Check(r.String(), gc.Equals, "Validation: 1 violations, 2 warnings\n"+
		"  violation OverCapacity sn1: sn1 hosts 2 RepNodes, exceeding its capacity of 1\n"+
		"  warning   MultipleRNsInRoot sn1: sn1 hosts 2 RepNodes in its root directory\n"+
		"  warning   UnderCapacity sn2: sn2 hosts 0 RepNodes, below its capacity of 2\n")

	c.Check(r.Contains(Problem{Kind: UnderCapacity, StorageNode: 2, Expected: 2, Actual: 0}), gc.Equals, true)
	c.Check(r.Contains(Problem{Kind: UnderCapacity, StorageNode: 1, Expected: 2, Actual: 0}), gc.Equals, false)
	c.Check(r.Violations(), gc.HasLen, 1)
	c.Check(r.Warnings(), gc.HasLen, 2)
	c.Check(r.NumProblems(), gc.Equals, 3)
}

func (s *RulesSuite) TestReplication(c *gc.C) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 2, false)
	var sns = f.StorageNodes(zn, 3, 3, false)
	f.Place(sns[0], sns[0])
	f.Place(sns[1])
	f.Place(sns[0], sns[1], sns[2])

	var r = Validate(f.Topology, f.Params, false)
	c.Check(r.Find(RNProximity), gc.DeepEquals, []Problem{
		{Kind: RNProximity, Shard: 1, StorageNode: 1, Expected: 1, Actual: 2},
	})
	c.Check(r.Find(InsufficientRNs), gc.DeepEquals, []Problem{
		{Kind: InsufficientRNs, Zone: 1, Shard: 2, Expected: 2, Actual: 1},
	})
	c.Check(r.Find(ExcessRNs), gc.DeepEquals, []Problem{
		{Kind: ExcessRNs, Zone: 1, Shard: 3, Expected: 2, Actual: 3},
	})
	// Arbiters are needed, but no Zone may host them.
	c.Check(r.Find(InsufficientANs), gc.HasLen, 0)
}

func (s *RulesSuite) TestMisplacedArbiters(c *gc.C) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 3, false)
	var sns = f.StorageNodes(zn, 4, 1, false)
	f.Place(sns[0], sns[1], sns[2]).AddArbNode(sns[3])

	var r = Validate(f.Topology, f.Params, false)
	var an = topology.ArbNodeID{Shard: 1, Node: 1}

	c.Check(r.Violations(), gc.DeepEquals, []Problem{
		{Kind: ANWrongDC, ArbNode: an, Zone: 1},
		{Kind: ANNotAllowedOnSN, ArbNode: an, StorageNode: 4},
	})
	c.Check(r.Find(ExcessANs), gc.DeepEquals, []Problem{
		{Kind: ExcessANs, Shard: 1, Expected: 0, Actual: 1},
	})
}

func (s *RulesSuite) TestMissingAndUnevenArbiters(c *gc.C) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 2, true)
	var sns = f.StorageNodes(zn, 3, 2, true)
	f.Place(sns[0], sns[1]).AddArbNode(sns[2])
	f.Place(sns[2], sns[0]).AddArbNode(sns[2])
	f.Place(sns[1], sns[2])

	var r = Validate(f.Topology, f.Params, false)
	c.Check(r.Find(InsufficientANs), gc.DeepEquals, []Problem{
		{Kind: InsufficientANs, Shard: 3, Expected: 1, Actual: 0},
	})
	c.Check(r.Find(UnevenANDistribution), gc.DeepEquals, []Problem{
		{Kind: UnevenANDistribution, Zone: 1, Expected: 0, Actual: 2},
	})
	c.Check(r.NumViolations(), gc.Equals, 0)
}

func (s *RulesSuite) TestDeployedChecks(c *gc.C) {
	var f = topotest.New()
	var z1 = f.Zone("Boston", topology.Primary, 1, false)
	var z2 = f.Zone("Seattle", topology.Secondary, 1, false)
	var sn1 = f.StorageNode(z1, topology.StorageNodeParams{Capacity: 1, RootDirPath: "/kv", MemoryMB: 1024})
	var sn2 = f.StorageNode(z2, topology.StorageNodeParams{
		Capacity:    1,
		RootDirSize: 1 << 30,
		StorageDirs: []topology.StorageDir{{Path: "/d1"}},
	})

	var rg1 = f.Topology.AddShard()
	var rn1 = rg1.AddRepNode(sn1, topology.SecondaryNode, "")
	var rn2 = rg1.AddRepNode(sn2, topology.SecondaryNode, "/d1")
	f.Params.RepNodes[rn1.ID] = topology.RepNodeParams{HeapMB: 2048}

	var a1 = f.Admin(sn2, topology.PrimaryAdmin)
	f.Admin(sn2, topology.SecondaryAdmin)

	// Only the heap check applies prior to deployment.
	var r = Validate(f.Topology, f.Params, false)
	c.Check(r.Problems(), gc.DeepEquals, []Problem{
		{Kind: RNHeapExceedsSNMemory, StorageNode: sn1, Expected: 1024, Actual: 2048},
	})
	c.Check(r.Problems()[0].String(), gc.Equals,
		"RNHeapExceedsSNMemory sn1: RepNode heaps of sn1 total 2.0 GiB, exceeding its memory of 1.0 GiB")

	r = Validate(f.Topology, f.Params, true)
	for _, p := range []Problem{
		{Kind: WrongNodeType, RepNode: rn1.ID, Zone: z1, Detail: "SECONDARY"},
		{Kind: MissingRootDirectorySize, StorageNode: sn1, Detail: "/kv"},
		{Kind: MissingStorageDirectorySize, StorageNode: sn2, RepNode: rn2.ID, Detail: "/d1"},
		{Kind: WrongAdminType, Admin: a1, Zone: z2, Detail: "PRIMARY"},
		{Kind: InsufficientAdmins, Zone: z1, Expected: 1, Actual: 0},
		{Kind: ExcessAdmins, Zone: z2, Expected: 1, Actual: 2},
	} {
		c.Check(r.Contains(p), gc.Equals, true, gc.Commentf("%s", p))
	}
	c.Check(r.NumViolations(), gc.Equals, 3)
	c.Check(r.NumProblems(), gc.Equals, 7)
}

func (s *RulesSuite) TestPartitionBalance(c *gc.C) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 1, false)
	var sns = f.StorageNodes(zn, 2, 1, false)
	f.Place(sns[0])
	f.Place(sns[1])
	f.Assign(1, 1, 8)

	var r = Validate(f.Topology, f.Params, false)
	c.Check(r.Problems(), gc.DeepEquals, []Problem{
		{Kind: NonOptimalNumPartitions, Shard: 1, Expected: 4, Actual: 8},
		{Kind: NonOptimalNumPartitions, Shard: 2, Expected: 4, Actual: 0},
	})

	f.Topology.Partitions = map[topology.PartitionID]topology.ShardID{1: 1}
	r = Validate(f.Topology, f.Params, false)
	c.Check(r.Problems(), gc.DeepEquals, []Problem{
		{Kind: NonOptimalNumPartitions, Expected: 2, Actual: 1},
	})
	c.Check(r.Problems()[0].Resource(), gc.Equals, "store")
}

func (s *RulesSuite) TestMissingStorageNodes(c *gc.C) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 1, false)
	var sn1 = f.Topology.AddStorageNode(zn, "unconfigured").ID
	f.Topology.AddShard().AddRepNode(99, topology.Electable, "")

	var r = Validate(f.Topology, f.Params, false)
	c.Check(r.Find(StorageNodeMissing), gc.DeepEquals, []Problem{
		{Kind: StorageNodeMissing, StorageNode: 99, Detail: "hosts rg1-rn1"},
		{Kind: StorageNodeMissing, StorageNode: sn1, Detail: "no parameters"},
	})
}

func (s *RulesSuite) TestNewProblemRequiresResources(c *gc.C) {
	c.Check(func() { NewProblem(Problem{Kind: OverCapacity}) },
		gc.PanicMatches, "OverCapacity problem requires StorageNode")
	c.Check(func() { NewProblem(Problem{Kind: WrongNodeType, RepNode: topology.RepNodeID{Shard: 1, Node: 1}}) },
		gc.PanicMatches, "WrongNodeType problem requires Zone")
	c.Check(func() { NewProblem(Problem{}) }, gc.PanicMatches, "invalid problem kind 0")

	var p = NewProblem(Problem{Kind: NoPrimaryDC})
	c.Check(p.IsViolation(), gc.Equals, true)
	c.Check(UnderCapacity.IsViolation(), gc.Equals, false)
	c.Check(Kind(99).String(), gc.Equals, "Kind(99)")
}

func (s *RulesSuite) TestWriteTable(c *gc.C) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 1, false)
	var sn1 = f.StorageNodes(zn, 1, 1, false)[0]
	f.Place(sn1)
	f.Place(sn1)

	var buf bytes.Buffer
	c.Assert(Validate(f.Topology, f.Params, false).WriteTable(&buf), gc.IsNil)

	c.Check(buf.String(), gc.Matches, `(?s).*violation.*OverCapacity.*sn1.*sn1 hosts 2 RepNodes, exceeding its capacity of 1.*`)
	c.Check(buf.String(), gc.Matches, `(?s).*warning.*MultipleRNsInRoot.*`)
}

func (s *RulesSuite) TestCalculateMaximumCapacity(c *gc.C) {
	var f = topotest.New()
	var zn = f.Zone("Boston", topology.Primary, 1, false)
	f.StorageNodes(zn, 2, 3, false)

	c.Check(CalculateMaximumCapacity(f.Pool(), f.Params), gc.Equals, 6)
	c.Check(CalculateMaximumCapacity(topology.NewPool("p", 1, 99), f.Params), gc.Equals, 3)
}

func (s *RulesSuite) TestValidateTransition(c *gc.C) {
	var f = topotest.New()
	f.Zone("Boston", topology.Primary, 3, false)
	f.Zone("Seattle", topology.Secondary, 2, false)
	var old = f.Topology

	c.Check(ValidateTransition(old, old.Copy(), f.Params, false), gc.IsNil)

	// Increases, and reductions of Secondary Zones, are permitted.
	var next = old.Copy()
	next.Zones[1].RepFactor = 5
	next.Zones[2].RepFactor = 0
	c.Check(ValidateTransition(old, next, f.Params, false), gc.IsNil)

	next = old.Copy()
	next.Zones[1].RepFactor = 2
	var err = ValidateTransition(old, next, f.Params, false)
	c.Check(err, gc.ErrorMatches,
		`attempted to reduce the replication factor of primary zone Boston \(zn1\) from 3 to 2`)
	c.Check(topology.IsConfigError(err), gc.Equals, true)
	c.Check(ValidateTransition(old, next, f.Params, true), gc.IsNil)

	// Changing a Primary Zone to Secondary reduces its primary replication to zero.
	next = old.Copy()
	next.Zones[1].Type = topology.Secondary
	c.Check(ValidateTransition(old, next, f.Params, false), gc.ErrorMatches,
		`attempted to reduce the replication factor of primary zone Boston \(zn1\) from 3 to 0`)

	next = old.Copy()
	delete(next.Zones, 1)
	c.Check(ValidateTransition(old, next, f.Params, false), gc.NotNil)
}

var _ = gc.Suite(&RulesSuite{})

func Test(t *testing.T) { gc.TestingT(t) }
