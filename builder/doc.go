// Package builder is the placement engine. It computes how many Shards the
// StorageNodes of a Pool can support, places RepNodes of each Shard across the
// Zones of the Topology with capacity-weighted round robin, delegates ArbNode
// placement and Partition distribution, and evolves an existing Topology
// incrementally: redistributing onto new capacity, rebalancing, contracting,
// changing a Zone's replication factor, and removing a failed Shard.
//
// Every operation works on a private copy of the Builder's input and returns
// a new Candidate, or a *topology.ConfigError. Inputs are never modified.
package builder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	builderOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topoplan_builder_operations_total",
		Help: "Cumulative number of builder operations, by operation and outcome.",
	}, []string{"operation", "outcome"})
	builderShardsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topoplan_builder_shards_created_total",
		Help: "Cumulative number of shards created by the builder.",
	})
	builderShardsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topoplan_builder_shards_removed_total",
		Help: "Cumulative number of shards removed by the builder.",
	})
	builderRepNodesPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topoplan_builder_rep_nodes_placed_total",
		Help: "Cumulative number of rep nodes placed by the builder.",
	})
	builderRepNodesRelocatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topoplan_builder_rep_nodes_relocated_total",
		Help: "Cumulative number of rep nodes relocated by the builder.",
	})
	builderRepNodesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topoplan_builder_rep_nodes_removed_total",
		Help: "Cumulative number of rep nodes removed by the builder.",
	})
	builderArbNodeChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topoplan_builder_arb_node_changes_total",
		Help: "Cumulative number of arbiter nodes added, moved or removed by the builder.",
	})
	builderPartitionsMovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topoplan_builder_partitions_moved_total",
		Help: "Cumulative number of partitions assigned or moved by the builder.",
	})
)
