// Package partitions maps the Partitions of a key-space onto the Shards of a
// Topology, in proportion to each Shard's storage budget, moving as few
// Partitions as possible when the set of Shards changes.
package partitions

import (
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.topoplan.dev/core/topology"
)

// Move of a Partition between Shards. From is zero for a Partition which had
// no current owner (it is new, or its Shard was removed).
type Move struct {
	Partition topology.PartitionID
	From, To  topology.ShardID
}

// Weights returns the storage budget of each Shard of |t|, as the summed size
// of its RepNodes' storage directories, in MiB. If the size of any RepNode's
// directory isn't known Weights returns nil, and Shards are weighted evenly.
func Weights(t *topology.Topology, params *topology.Parameters) map[topology.ShardID]int64 {
	var out = make(map[topology.ShardID]int64, len(t.Shards))

	for _, s := range t.Shards {
		if len(s.RepNodes) == 0 {
			return nil
		}
		for _, rn := range s.RepNodes {
			var snp, ok = params.StorageNode(rn.StorageNode)
			if !ok {
				return nil
			}
			var size = snp.DirSize(rn.StorageDir)
			if size <= 0 {
				return nil
			}
			out[s.ID] += max(size>>20, 1)
		}
	}
	return out
}

// Targets returns the number of Partitions each of |shards| should own, out
// of |n| total. Targets are proportional to |weights| (or even, if |weights|
// is nil) using largest-remainder rounding. Remainder ties favor Shards which
// |current|ly own more than their floor, and then lower ShardIDs. If n is at
// least len(shards), no Shard has a zero target.
func Targets(shards []topology.ShardID, weights map[topology.ShardID]int64,
	current map[topology.ShardID]int, n int) map[topology.ShardID]int {

	var out = make(map[topology.ShardID]int, len(shards))
	if len(shards) == 0 {
		return out
	}
	var ids = append([]topology.ShardID(nil), shards...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var weightOf = func(id topology.ShardID) int64 {
		if weights == nil {
			return 1
		}
		return max(weights[id], 1)
	}
	var total int64
	for _, id := range ids {
		total += weightOf(id)
	}

	var rem = make(map[topology.ShardID]int64, len(ids))
	var assigned int
	for _, id := range ids {
		var w = int64(n) * weightOf(id)
		out[id] = int(w / total)
		rem[id] = w % total
		assigned += out[id]
	}

	var order = append([]topology.ShardID(nil), ids...)
	sort.SliceStable(order, func(i, j int) bool {
		var a, b = order[i], order[j]
		if rem[a] != rem[b] {
			return rem[a] > rem[b]
		}
		var ga, gb = current[a] > out[a], current[b] > out[b]
		if ga != gb {
			return ga
		}
		return a < b
	})
	for i := 0; assigned < n; i++ {
		out[order[i%len(order)]]++
		assigned++
	}

	if n < len(ids) {
		return out
	}
	// Heavily skewed weights may leave a Shard with nothing.
	for _, id := range ids {
		if out[id] != 0 {
			continue
		}
		var donor = ids[0]
		for _, d := range ids {
			if out[d] >= out[donor] {
				donor = d
			}
		}
		out[donor]--
		out[id]++
	}
	return out
}

// Distribute assigns the |n| Partitions of |t| to its Shards. Partitions are
// created on first use, as contiguous ranges. Thereafter only orphaned
// Partitions and the surplus of over-provisioned Shards are moved.
func Distribute(t *topology.Topology, params *topology.Parameters, n int) ([]Move, error) {
	if len(t.Partitions) > n {
		return nil, topology.NewConfigError(
			"topology has %d partitions, which is more than the %d requested", len(t.Partitions), n)
	} else if outside := t.PartitionsOutside(n); len(outside) != 0 {
		return nil, topology.NewConfigError("partitions must be numbered 1 through %d, but the topology has %s",
			n, topology.FormatPartitions(outside))
	}
	var shards []topology.ShardID
	for _, s := range t.SortedShards() {
		shards = append(shards, s.ID)
	}
	if len(shards) == 0 || n == 0 {
		return nil, nil
	}
	var current = t.PartitionCounts()
	var targets = Targets(shards, Weights(t, params), current, n)
	var moves []Move

	if len(t.Partitions) == 0 {
		var next = topology.PartitionID(1)
		for _, id := range shards {
			for i := 0; i != targets[id]; i++ {
				t.Partitions[next] = id
				moves = append(moves, Move{Partition: next, To: id})
				next++
			}
		}
		log.WithFields(log.Fields{"partitions": n, "shards": len(shards)}).
			Debug("assigned initial partitions")
		return moves, nil
	}

	// Collect Partitions to be placed: orphans first, in order.
	var pending []Move
	for p := topology.PartitionID(1); int(p) <= n; p++ {
		if s, ok := t.Partitions[p]; !ok {
			pending = append(pending, Move{Partition: p})
		} else if _, ok = t.Shards[s]; !ok {
			pending = append(pending, Move{Partition: p, From: s})
		}
	}

	// Then the surplus of donors, taken from the most over-provisioned first.
	var owned = make(map[topology.ShardID][]topology.PartitionID, len(shards))
	for _, id := range shards {
		owned[id] = t.PartitionsOf(id)
	}
	for {
		var donor topology.ShardID
		var surplus int
		for _, id := range shards {
			if s := current[id] - targets[id]; s > surplus {
				donor, surplus = id, s
			}
		}
		if surplus == 0 {
			break
		}
		var ps = owned[donor]
		pending = append(pending, Move{Partition: ps[len(ps)-1], From: donor})
		owned[donor] = ps[:len(ps)-1]
		current[donor]--
	}

	for _, m := range pending {
		var recv topology.ShardID
		var deficit int
		for _, id := range shards {
			if d := targets[id] - current[id]; d > deficit {
				recv, deficit = id, d
			}
		}
		if deficit == 0 {
			return nil, errors.Errorf("no shard can receive partition %d", m.Partition)
		}
		m.To = recv
		t.Partitions[m.Partition] = recv
		current[recv]++
		moves = append(moves, m)
	}

	if len(moves) != 0 {
		log.WithFields(log.Fields{"moved": len(moves), "partitions": n, "shards": len(shards)}).
			Debug("redistributed partitions")
	}
	return moves, nil
}
