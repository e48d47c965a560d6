package builder

import (
	"sort"

	petname "github.com/dustinkirkland/golang-petname"
	log "github.com/sirupsen/logrus"
	"go.topoplan.dev/core/rules"
	"go.topoplan.dev/core/topology"
)

// MaxRepFactor is the largest replication factor a Zone may be configured with.
const MaxRepFactor = 20

// Option configures a Builder.
type Option func(*Builder)

// ForContraction returns an Option which permits the Builder's Pool to omit
// StorageNodes which are in use, as Contract requires.
func ForContraction() Option {
	return func(b *Builder) { b.contraction = true }
}

// Builder produces Candidates from a source Topology, a Pool of StorageNodes
// to place onto, a number of Partitions, and StorageNode parameters.
type Builder struct {
	source        *topology.Candidate
	pool          topology.Pool
	params        *topology.Parameters
	numPartitions int
	contraction   bool
}

// New returns a Builder of Candidates named |name| derived from |src|. If
// |name| is empty, one is generated. |numPartitions| may be zero if |src|
// already has Partitions, in which case their number is retained.
func New(src *topology.Topology, name string, pool topology.Pool, numPartitions int,
	params *topology.Parameters, opts ...Option) (*Builder, error) {
	return NewFromCandidate(topology.NewCandidate(name, src), pool, numPartitions, params, opts...)
}

// NewFromCandidate returns a Builder of Candidates derived from |cand|.
func NewFromCandidate(cand *topology.Candidate, pool topology.Pool, numPartitions int,
	params *topology.Parameters, opts ...Option) (*Builder, error) {

	var b = &Builder{
		source:        cand.Copy(),
		pool:          topology.NewPool(pool.Name, pool.StorageNodes...),
		params:        params.Copy(),
		numPartitions: numPartitions,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.source.Name == "" {
		b.source.Name = petname.Generate(2, "-")
	}
	if err := b.verify(); err != nil {
		return nil, topology.ExtendContext(err, "candidate %s", b.source.Name)
	}
	return b, nil
}

// Name of Candidates produced by the Builder.
func (b *Builder) Name() string { return b.source.Name }

// NumPartitions of Candidates produced by the Builder.
func (b *Builder) NumPartitions() int { return b.numPartitions }

func (b *Builder) verify() error {
	var t = b.source.Topology

	if b.pool.Len() == 0 {
		return topology.NewConfigError("storage node pool %s is empty", b.pool.Name)
	} else if len(t.StorageNodes) == 0 {
		return topology.NewConfigError("topology has no storage nodes")
	}

	var unknown, noParams []topology.StorageNodeID
	for _, sn := range b.pool.StorageNodes {
		if _, ok := t.StorageNodes[sn]; !ok {
			unknown = append(unknown, sn)
		} else if _, ok = b.params.StorageNode(sn); !ok {
			noParams = append(noParams, sn)
		}
	}
	if len(unknown) != 0 {
		return topology.NewConfigError("storage node pool %s includes storage nodes not in the topology: %s",
			b.pool, topology.JoinIDs(unknown))
	} else if len(noParams) != 0 {
		return topology.NewConfigError("storage nodes have no parameters: %s", topology.JoinIDs(noParams))
	}

	for _, s := range t.SortedShards() {
		for _, rn := range s.SortedRepNodes() {
			if _, ok := t.StorageNodes[rn.StorageNode]; !ok {
				return topology.NewConfigError("rep node %s is placed on storage node %s, which isn't in the topology",
					rn.ID, rn.StorageNode)
			}
		}
	}

	if !b.contraction {
		var omitted []topology.StorageNodeID
		for _, sn := range t.InUse() {
			if !b.pool.Contains(sn) {
				omitted = append(omitted, sn)
			}
		}
		if len(omitted) != 0 {
			return topology.NewConfigError(
				"storage node pool %s omits storage nodes which host nodes of the topology: %s",
				b.pool, topology.JoinIDs(omitted))
		}
	}

	var hasPrimary bool
	var secondary *topology.Zone
	for _, z := range t.SortedZones() {
		if z.Type == topology.Primary && z.RepFactor > 0 {
			hasPrimary = true
		} else if z.Type == topology.Secondary && secondary == nil {
			secondary = z
		}
	}
	if !hasPrimary && secondary != nil {
		return topology.NewConfigError(
			"secondary zone %s (%s) requires a primary zone with a replication factor greater than zero",
			secondary.Name, secondary.ID)
	} else if !hasPrimary {
		return topology.NewConfigError("topology has no primary zone with a replication factor greater than zero")
	}

	var existing = t.NumPartitions()
	if b.numPartitions == 0 {
		b.numPartitions = existing
	} else if b.numPartitions < 0 || b.numPartitions > topology.MaxPartitions {
		return topology.NewConfigError("invalid number of partitions %d (expected 1 through %d)",
			b.numPartitions, topology.MaxPartitions)
	} else if existing != 0 && b.numPartitions != existing {
		return topology.NewConfigError(
			"cannot change the number of partitions from %d to %d", existing, b.numPartitions)
	}
	if outside := t.PartitionsOutside(b.numPartitions); len(outside) != 0 {
		return topology.NewConfigError("partitions must be numbered 1 through %d, but the topology has %s",
			b.numPartitions, topology.FormatPartitions(outside))
	}

	var capacity = rules.CalculateMaximumCapacity(b.pool, b.params)
	var rf = t.TotalRepFactor()
	if need := (capacity + rf - 1) / rf; b.numPartitions < need {
		return topology.NewConfigError(
			"%d partitions cannot cover the %d shards which storage node pool %s (capacity %d) may support",
			b.numPartitions, need, b.pool, capacity)
	}
	return nil
}

// Build places as many complete Shards as the Pool can support. Missing
// RepNodes of existing Shards are placed first. RepNodes which are already
// placed aren't moved. ArbNodes are then placed and Partitions distributed.
// Build is also used to redistribute a deployed Topology onto added capacity.
func (b *Builder) Build() (*topology.Candidate, error) {
	return b.run("build", func(p *plan) error {
		p.fill(0)

		var target = p.supportedShards()
		for len(p.t.Shards) < target {
			if !p.addShard() {
				p.cand.Audit("stopped creating shards at %d of %d: remaining capacity cannot hold a complete shard",
					len(p.t.Shards), target)
				break
			}
		}
		p.placeArbiters(false)
		return p.distribute()
	})
}

// Rebalance corrects capacity, proximity, and balance problems of the source
// Topology by relocating RepNodes within their Zones. If |zone| is non-zero,
// only RepNodes of that Zone are considered. ArbNodes are relocated and
// levelled, and Partitions redistributed.
func (b *Builder) Rebalance(zone topology.ZoneID) (*topology.Candidate, error) {
	if zone != 0 {
		if _, ok := b.source.Topology.Zones[zone]; !ok {
			return nil, topology.NewConfigError("zone %s doesn't exist", zone)
		}
	}
	return b.run("rebalance", func(p *plan) error {
		p.fill(zone)
		if err := p.relocate(zone); err != nil {
			return err
		}
		p.placeArbiters(true)
		return p.distribute()
	})
}

// Contract removes StorageNodes which are in use but omitted from the Pool.
// The Pool must be a subset of in-use StorageNodes. If the remaining capacity
// supports fewer Shards, Shards owning the fewest Partitions are dropped.
// RepNodes of departing StorageNodes are relocated onto the Pool.
func (b *Builder) Contract() (*topology.Candidate, error) {
	var t = b.source.Topology
	var inUse = make(map[topology.StorageNodeID]bool)
	for _, sn := range t.InUse() {
		inUse[sn] = true
	}
	var unexpected []topology.StorageNodeID
	for _, sn := range b.pool.StorageNodes {
		if !inUse[sn] {
			unexpected = append(unexpected, sn)
		}
	}
	if len(unexpected) != 0 {
		return nil, topology.NewConfigError(
			"contracting storage node pool %s includes storage nodes which are not in use: %s",
			b.pool, topology.JoinIDs(unexpected))
	}
	for _, z := range t.SortedZones() {
		if z.RepFactor == 0 {
			continue
		}
		var n int
		for _, sn := range b.pool.StorageNodes {
			if t.StorageNodes[sn].Zone == z.ID && b.params.Capacity(sn) > 0 {
				n++
			}
		}
		if n < z.RepFactor {
			return nil, topology.NewConfigError(
				"Insufficient storage nodes to support current zones: zone %s (%s) has replication factor %d, but only %d usable storage nodes",
				z.Name, z.ID, z.RepFactor, n)
		}
	}

	return b.run("contract", func(p *plan) error {
		var target = max(1, min(len(p.t.Shards), p.supportedShards()))
		p.dropShards(len(p.t.Shards) - target)

		if err := p.relocate(0); err != nil {
			return err
		}
		p.placeArbiters(false)
		return p.distribute()
	})
}

// ChangeRepFactor sets the replication factor of |zone| to |rf|. Growing it
// adds RepNodes to each Shard. Shrinking is permitted only for Secondary
// Zones, and removes RepNodes from the most loaded StorageNodes.
func (b *Builder) ChangeRepFactor(rf int, zone topology.ZoneID) (*topology.Candidate, error) {
	var z, ok = b.source.Topology.Zones[zone]
	if !ok {
		return nil, topology.NewConfigError("zone %s doesn't exist", zone)
	} else if rf < 0 || rf > MaxRepFactor {
		return nil, topology.NewConfigError(
			"invalid replication factor %d for zone %s (expected 0 through %d)", rf, zone, MaxRepFactor)
	} else if rf < z.RepFactor && z.Type == topology.Primary {
		return nil, topology.NewConfigError(
			"cannot reduce the replication factor of primary zone %s (%s) from %d to %d",
			z.Name, zone, z.RepFactor, rf)
	}

	return b.run("change-repfactor", func(p *plan) error {
		var z = p.t.Zones[zone]
		p.cand.Audit("changed replication factor of zone %s from %d to %d", zone, z.RepFactor, rf)

		var prev = z.RepFactor
		z.RepFactor = rf

		if rf > prev {
			p.fill(zone)
		} else if rf < prev {
			p.trim(zone)
		}
		p.placeArbiters(false)
		return p.distribute()
	})
}

// RemoveFailedShard removes Shard |id| with its RepNodes and ArbNodes, and
// redistributes its Partitions. Admins of StorageNodes left hosting nothing
// are reported by the Candidate's RemovedAdmins.
func (b *Builder) RemoveFailedShard(id topology.ShardID) (*topology.Candidate, error) {
	var t = b.source.Topology
	if _, ok := t.Shards[id]; !ok {
		return nil, topology.NewConfigError("shard %s doesn't exist", id)
	} else if len(t.Shards) == 1 {
		return nil, topology.NewConfigError("removing shard %s would leave zero shards", id)
	}

	return b.run("remove-shard", func(p *plan) error {
		var hosts = p.removeShard(p.t.Shards[id])

		for _, sn := range hosts {
			if p.t.ArbNodeCounts()[sn] != 0 || p.used[sn] != 0 {
				continue
			}
			for _, a := range p.params.AdminsOn(sn) {
				p.cand.RemovedAdmins = append(p.cand.RemovedAdmins, a.ID)
				p.cand.Audit("removed %s of %s, which hosts no remaining nodes", a.ID, sn)
			}
		}
		sort.Slice(p.cand.RemovedAdmins, func(i, j int) bool {
			return p.cand.RemovedAdmins[i] < p.cand.RemovedAdmins[j]
		})
		p.placeArbiters(false)
		return p.distribute()
	})
}

// run |fn| against a fresh plan of operation |op|, returning its Candidate.
func (b *Builder) run(op string, fn func(*plan) error) (*topology.Candidate, error) {
	var p = b.newPlan()

	if err := fn(p); err != nil {
		builderOperationsTotal.WithLabelValues(op, "error").Inc()
		return nil, topology.ExtendContext(err, "%s of candidate %s", op, p.cand.Name)
	}
	builderOperationsTotal.WithLabelValues(op, "ok").Inc()

	log.WithFields(log.Fields{
		"op":         op,
		"candidate":  p.cand.Name,
		"pool":       b.pool.String(),
		"shards":     len(p.t.Shards),
		"partitions": p.t.NumPartitions(),
		"audit":      len(p.cand.AuditLog()),
	}).Info("produced topology candidate")

	return p.cand, nil
}
