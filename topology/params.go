package topology

import (
	"fmt"
	"sort"
)

// StorageDir is a storage directory of a StorageNode. A zero Size means the
// directory's size budget isn't configured.
type StorageDir struct {
	Path string
	Size int64
}

// StorageNodeParams is operator configuration of a StorageNode.
type StorageNodeParams struct {
	// Capacity is the number of RepNodes the StorageNode may host.
	// ArbNodes don't consume Capacity: a zero-capacity StorageNode may still
	// be a dedicated arbiter host.
	Capacity      int
	AllowArbiters bool
	MemoryMB      int
	RootDirPath   string
	RootDirSize   int64
	StorageDirs   []StorageDir
}

// DirSize returns the size budget of the storage directory at |path|,
// or of the root directory if |path| is empty. Zero means unknown.
func (p StorageNodeParams) DirSize(path string) int64 {
	if path == "" {
		return p.RootDirSize
	}
	for _, d := range p.StorageDirs {
		if d.Path == path {
			return d.Size
		}
	}
	return 0
}

// RepNodeParams is operator configuration of a RepNode.
type RepNodeParams struct {
	HeapMB int
}

// AdminType of an admin service instance. It must agree with the type of
// the Zone hosting it.
type AdminType int

const (
	PrimaryAdmin AdminType = iota
	SecondaryAdmin
)

func (t AdminType) String() string {
	switch t {
	case PrimaryAdmin:
		return "PRIMARY"
	case SecondaryAdmin:
		return "SECONDARY"
	default:
		return fmt.Sprintf("AdminType(%d)", int(t))
	}
}

// AdminParams places an admin service instance on a StorageNode.
type AdminParams struct {
	ID          AdminID
	StorageNode StorageNodeID
	Type        AdminType
}

// Parameters is the caller-owned configuration read by the placement and
// validation engines. Parameters are treated as read-only for the duration
// of an operation.
type Parameters struct {
	StorageNodes map[StorageNodeID]StorageNodeParams
	RepNodes     map[RepNodeID]RepNodeParams
	Admins       []AdminParams
}

// NewParameters returns empty Parameters.
func NewParameters() *Parameters {
	return &Parameters{
		StorageNodes: make(map[StorageNodeID]StorageNodeParams),
		RepNodes:     make(map[RepNodeID]RepNodeParams),
	}
}

// StorageNode returns the StorageNodeParams of |id|, and whether they exist.
func (p *Parameters) StorageNode(id StorageNodeID) (StorageNodeParams, bool) {
	var snp, ok = p.StorageNodes[id]
	return snp, ok
}

// Capacity of StorageNode |id|, or zero if it has no parameters.
func (p *Parameters) Capacity(id StorageNodeID) int {
	return p.StorageNodes[id].Capacity
}

// AllowsArbiters returns whether StorageNode |id| may host ArbNodes.
func (p *Parameters) AllowsArbiters(id StorageNodeID) bool {
	return p.StorageNodes[id].AllowArbiters
}

// AdminsOn returns admins placed on StorageNode |id|.
func (p *Parameters) AdminsOn(id StorageNodeID) []AdminParams {
	var out []AdminParams
	for _, a := range p.Admins {
		if a.StorageNode == id {
			out = append(out, a)
		}
	}
	return out
}

// WithoutAdmins returns a Copy of the Parameters with admins |ids| removed.
func (p *Parameters) WithoutAdmins(ids ...AdminID) *Parameters {
	var out = p.Copy()
	out.Admins = out.Admins[:0]
	for _, a := range p.Admins {
		var drop bool
		for _, id := range ids {
			drop = drop || a.ID == id
		}
		if !drop {
			out.Admins = append(out.Admins, a)
		}
	}
	return out
}

// Copy returns a deep copy of the Parameters. Admins of the copy are
// ordered on AdminID.
func (p *Parameters) Copy() *Parameters {
	var out = &Parameters{
		StorageNodes: make(map[StorageNodeID]StorageNodeParams, len(p.StorageNodes)),
		RepNodes:     make(map[RepNodeID]RepNodeParams, len(p.RepNodes)),
		Admins:       append([]AdminParams(nil), p.Admins...),
	}
	for id, snp := range p.StorageNodes {
		snp.StorageDirs = append([]StorageDir(nil), snp.StorageDirs...)
		out.StorageNodes[id] = snp
	}
	for id, rnp := range p.RepNodes {
		out.RepNodes[id] = rnp
	}
	sort.Slice(out.Admins, func(i, j int) bool { return out.Admins[i].ID < out.Admins[j].ID })
	return out
}
