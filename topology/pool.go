package topology

import "strings"

// Pool is a named, ordered set of StorageNodes eligible for use by one
// placement operation.
type Pool struct {
	Name         string
	StorageNodes []StorageNodeID
}

// NewPool returns a Pool of the given StorageNodes.
func NewPool(name string, ids ...StorageNodeID) Pool {
	return Pool{Name: name, StorageNodes: append([]StorageNodeID(nil), ids...)}
}

// PoolOf returns a Pool of all StorageNodes of the Topology.
func PoolOf(name string, t *Topology) Pool {
	var p = Pool{Name: name}
	for _, sn := range t.SortedStorageNodes() {
		p.StorageNodes = append(p.StorageNodes, sn.ID)
	}
	return p
}

// Contains returns whether |id| is a member of the Pool.
func (p Pool) Contains(id StorageNodeID) bool {
	for _, m := range p.StorageNodes {
		if m == id {
			return true
		}
	}
	return false
}

// Len is the number of StorageNodes of the Pool.
func (p Pool) Len() int { return len(p.StorageNodes) }

func (p Pool) String() string {
	var parts = make([]string, len(p.StorageNodes))
	for i, id := range p.StorageNodes {
		parts[i] = id.String()
	}
	return p.Name + "[" + strings.Join(parts, " ") + "]"
}

// JoinIDs renders |ids| as a comma-separated list.
func JoinIDs[T interface{ String() string }](ids []T) string {
	var parts = make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
