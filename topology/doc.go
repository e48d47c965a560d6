// Package topology is the resource model of a replicated key-value store's
// cluster layout: Zones of StorageNodes, Shards made up of RepNodes and
// ArbNodes, and the Partitions of the key-space owned by each Shard.
//
// A Topology is a plain in-memory value. It's never shared between concurrent
// operations: each operation of the placement engine takes a deep Copy of its
// input and returns a new Candidate wrapping the result. Per-resource
// configuration which an operator may change between operations (StorageNode
// capacity, directories, arbiter eligibility, admin placement) is held apart
// from the Topology, in Parameters.
package topology
