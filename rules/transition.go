package rules

import (
	"go.topoplan.dev/core/topology"
)

// ValidateTransition verifies that moving from |old| to |cand| doesn't
// reduce the replication factor of any Primary Zone, nor the summed
// replication factor of all Primary Zones. A Zone which is removed, or
// which changes from Primary to Secondary, counts as a reduction to zero.
// Reductions are permitted only if |forFailover|, as when a failed Primary
// Zone is being taken out of quorum. |params| are those of |cand|; only
// replication factors of the Topologies are compared.
func ValidateTransition(old, cand *topology.Topology, params *topology.Parameters, forFailover bool) error {
	if forFailover {
		return nil
	}
	for _, z := range old.SortedZones() {
		if z.Type != topology.Primary {
			continue
		}
		var rf int
		if nz, ok := cand.Zones[z.ID]; ok && nz.Type == topology.Primary {
			rf = nz.RepFactor
		}
		if rf < z.RepFactor {
			return topology.NewConfigError(
				"attempted to reduce the replication factor of primary zone %s (%s) from %d to %d",
				z.Name, z.ID, z.RepFactor, rf)
		}
	}
	var before, after = old.PrimaryRepFactor(), cand.PrimaryRepFactor()
	if after < before {
		return topology.NewConfigError(
			"attempted to reduce the overall primary replication factor from %d to %d", before, after)
	}
	return nil
}
