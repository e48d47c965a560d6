// Package topospec defines a YAML document form of a Topology, together with
// the Parameters of its StorageNodes, RepNodes and admins, a StorageNode Pool,
// and a requested number of Partitions. Documents are loaded and stored
// through an afero.Fs.
package topospec

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.topoplan.dev/core/topology"
)

// Document is the YAML form of a Model.
type Document struct {
	// Name of the Topology or Candidate.
	Name string `yaml:"name,omitempty"`
	// Partitions is the requested number of Partitions. Zero means the number
	// of Partitions already assigned to Shards.
	Partitions   int           `yaml:"partitions,omitempty"`
	Zones        []Zone        `yaml:"zones"`
	StorageNodes []StorageNode `yaml:"storageNodes"`
	Shards       []Shard       `yaml:"shards,omitempty"`
	Admins       []Admin       `yaml:"admins,omitempty"`
	// Pool of StorageNodes to place onto. If omitted, all StorageNodes are used.
	Pool *Pool `yaml:"pool,omitempty"`
}

// Zone of a Document.
type Zone struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Type           string `yaml:"type,omitempty"`
	RepFactor      int    `yaml:"repFactor"`
	AllowArbiters  bool   `yaml:"allowArbiters,omitempty"`
	MasterAffinity bool   `yaml:"masterAffinity,omitempty"`
}

// StorageNode of a Document, with its parameters.
type StorageNode struct {
	ID            string       `yaml:"id"`
	Zone          string       `yaml:"zone"`
	Hostname      string       `yaml:"hostname,omitempty"`
	Capacity      int          `yaml:"capacity"`
	AllowArbiters bool         `yaml:"allowArbiters,omitempty"`
	Memory        string       `yaml:"memory,omitempty"`
	RootDir       string       `yaml:"rootDir,omitempty"`
	RootDirSize   string       `yaml:"rootDirSize,omitempty"`
	StorageDirs   []StorageDir `yaml:"storageDirs,omitempty"`
}

// StorageDir of a StorageNode.
type StorageDir struct {
	Path string `yaml:"path"`
	Size string `yaml:"size,omitempty"`
}

// Shard of a Document.
type Shard struct {
	ID       string    `yaml:"id"`
	RepNodes []RepNode `yaml:"repNodes"`
	ArbNodes []ArbNode `yaml:"arbNodes,omitempty"`
	// Partitions owned by the Shard, as ranges: "1-34,40".
	Partitions string `yaml:"partitions,omitempty"`
}

// RepNode of a Shard, with its parameters.
type RepNode struct {
	ID          string `yaml:"id"`
	StorageNode string `yaml:"storageNode"`
	Type        string `yaml:"type,omitempty"`
	Dir         string `yaml:"dir,omitempty"`
	Heap        string `yaml:"heap,omitempty"`
}

// ArbNode of a Shard.
type ArbNode struct {
	ID          string `yaml:"id"`
	StorageNode string `yaml:"storageNode"`
}

// Admin of a Document.
type Admin struct {
	ID          string `yaml:"id"`
	StorageNode string `yaml:"storageNode"`
	Type        string `yaml:"type,omitempty"`
}

// Pool of a Document.
type Pool struct {
	Name         string   `yaml:"name"`
	StorageNodes []string `yaml:"storageNodes"`
}

// Model is the decoded form of a Document.
type Model struct {
	Name          string
	Topology      *topology.Topology
	Params        *topology.Parameters
	Pool          topology.Pool
	NumPartitions int
}

// DefaultPoolName names the Pool of a Document which doesn't specify one.
const DefaultPoolName = "AllStorageNodes"

// Model decodes the Document. Errors name the offending resource.
func (d *Document) Model() (*Model, error) {
	var m = &Model{
		Name:          d.Name,
		Topology:      topology.New(),
		Params:        topology.NewParameters(),
		NumPartitions: d.Partitions,
	}
	var t = m.Topology

	if d.Partitions < 0 || d.Partitions > topology.MaxPartitions {
		return nil, errors.Errorf("invalid number of partitions %d (expected 0 through %d)",
			d.Partitions, topology.MaxPartitions)
	}

	for _, dz := range d.Zones {
		var id, err = topology.ParseZoneID(dz.ID)
		if err != nil {
			return nil, errors.WithMessagef(err, "zone %q", dz.ID)
		}
		typ, err := parseZoneType(dz.Type)
		if err != nil {
			return nil, errors.WithMessagef(err, "zone %s", id)
		}
		if _, ok := t.Zones[id]; ok {
			return nil, errors.Errorf("duplicate zone %s", id)
		}
		t.PutZone(topology.Zone{
			ID:             id,
			Name:           dz.Name,
			Type:           typ,
			RepFactor:      dz.RepFactor,
			AllowArbiters:  dz.AllowArbiters,
			MasterAffinity: dz.MasterAffinity,
		})
	}

	for _, dsn := range d.StorageNodes {
		var sn, err = decodeStorageNode(t, dsn)
		if err != nil {
			return nil, errors.WithMessagef(err, "storage node %q", dsn.ID)
		}
		snp, err := decodeStorageNodeParams(dsn)
		if err != nil {
			return nil, errors.WithMessagef(err, "storage node %s", sn)
		}
		m.Params.StorageNodes[sn] = snp
	}

	for _, ds := range d.Shards {
		if err := decodeShard(m, ds); err != nil {
			return nil, errors.WithMessagef(err, "shard %q", ds.ID)
		}
	}
	// Partitions are numbered 1 through the declared count, or through the
	// number present if none is declared.
	var n = d.Partitions
	if n == 0 {
		n = t.NumPartitions()
	}
	if outside := t.PartitionsOutside(n); len(outside) != 0 {
		return nil, errors.Errorf("partitions must be numbered 1 through %d, but shards own %s",
			n, topology.FormatPartitions(outside))
	}

	for _, da := range d.Admins {
		var a, err = decodeAdmin(da)
		if err != nil {
			return nil, errors.WithMessagef(err, "admin %q", da.ID)
		}
		m.Params.Admins = append(m.Params.Admins, a)
	}

	if d.Pool == nil {
		m.Pool = topology.PoolOf(DefaultPoolName, t)
	} else {
		m.Pool = topology.Pool{Name: d.Pool.Name}
		for _, s := range d.Pool.StorageNodes {
			var sn, err = topology.ParseStorageNodeID(s)
			if err != nil {
				return nil, errors.WithMessagef(err, "pool %s", d.Pool.Name)
			}
			m.Pool.StorageNodes = append(m.Pool.StorageNodes, sn)
		}
	}
	return m, nil
}

func decodeStorageNode(t *topology.Topology, dsn StorageNode) (topology.StorageNodeID, error) {
	var id, err = topology.ParseStorageNodeID(dsn.ID)
	if err != nil {
		return 0, err
	}
	zone, err := topology.ParseZoneID(dsn.Zone)
	if err != nil {
		return 0, err
	} else if _, ok := t.Zones[zone]; !ok {
		return 0, errors.Errorf("zone %s is not defined", zone)
	} else if _, ok = t.StorageNodes[id]; ok {
		return 0, errors.New("duplicate storage node")
	}
	t.PutStorageNode(topology.StorageNode{ID: id, Zone: zone, Hostname: dsn.Hostname})
	return id, nil
}

func decodeStorageNodeParams(dsn StorageNode) (topology.StorageNodeParams, error) {
	var snp = topology.StorageNodeParams{
		Capacity:      dsn.Capacity,
		AllowArbiters: dsn.AllowArbiters,
		RootDirPath:   dsn.RootDir,
	}
	if snp.Capacity < 0 {
		return snp, errors.Errorf("invalid capacity %d", snp.Capacity)
	}
	var mem, err = parseSize(dsn.Memory)
	if err != nil {
		return snp, errors.WithMessage(err, "memory")
	}
	snp.MemoryMB = int(mem >> 20)

	if snp.RootDirSize, err = parseSize(dsn.RootDirSize); err != nil {
		return snp, errors.WithMessage(err, "rootDirSize")
	}
	for _, dd := range dsn.StorageDirs {
		var size, err = parseSize(dd.Size)
		if err != nil {
			return snp, errors.WithMessagef(err, "storage directory %s", dd.Path)
		}
		snp.StorageDirs = append(snp.StorageDirs, topology.StorageDir{Path: dd.Path, Size: size})
	}
	return snp, nil
}

func decodeShard(m *Model, ds Shard) error {
	var t = m.Topology
	var id, err = topology.ParseShardID(ds.ID)
	if err != nil {
		return err
	} else if _, ok := t.Shards[id]; ok {
		return errors.New("duplicate shard")
	}
	var s = t.PutShard(id)

	for _, drn := range ds.RepNodes {
		var rn, err = decodeRepNode(t, id, drn)
		if err != nil {
			return errors.WithMessagef(err, "rep node %q", drn.ID)
		}
		s.PutRepNode(rn)

		if drn.Heap != "" {
			var heap, err = parseSize(drn.Heap)
			if err != nil {
				return errors.WithMessagef(err, "rep node %s heap", rn.ID)
			}
			m.Params.RepNodes[rn.ID] = topology.RepNodeParams{HeapMB: int(heap >> 20)}
		}
	}
	for _, dan := range ds.ArbNodes {
		var an, err = topology.ParseArbNodeID(dan.ID)
		if err != nil {
			return err
		} else if an.Shard != id {
			return errors.Errorf("arbiter %s doesn't belong to shard %s", an, id)
		}
		sn, err := topology.ParseStorageNodeID(dan.StorageNode)
		if err != nil {
			return errors.WithMessagef(err, "arbiter %s", an)
		}
		s.PutArbNode(topology.ArbNode{ID: an, StorageNode: sn})
	}

	parts, err := topology.ParsePartitions(ds.Partitions, m.NumPartitions)
	if err != nil {
		return err
	}
	for _, p := range parts {
		if owner, ok := t.Partitions[p]; ok {
			return errors.Errorf("partition %d is also owned by %s", p, owner)
		}
		t.Partitions[p] = id
	}
	return nil
}

func decodeRepNode(t *topology.Topology, shard topology.ShardID, drn RepNode) (topology.RepNode, error) {
	var id, err = topology.ParseRepNodeID(drn.ID)
	if err != nil {
		return topology.RepNode{}, err
	} else if id.Shard != shard {
		return topology.RepNode{}, errors.Errorf("doesn't belong to shard %s", shard)
	}
	sn, err := topology.ParseStorageNodeID(drn.StorageNode)
	if err != nil {
		return topology.RepNode{}, err
	}
	var rn = topology.RepNode{ID: id, StorageNode: sn, StorageDir: drn.Dir}

	switch strings.ToUpper(drn.Type) {
	case "":
		// Infer from the Zone of the StorageNode.
		if z := t.ZoneOf(sn); z != nil {
			rn.Type = topology.NodeTypeFor(z.Type)
		}
	case topology.Electable.String():
		rn.Type = topology.Electable
	case topology.SecondaryNode.String():
		rn.Type = topology.SecondaryNode
	default:
		return topology.RepNode{}, errors.Errorf("invalid type %q", drn.Type)
	}
	return rn, nil
}

func decodeAdmin(da Admin) (topology.AdminParams, error) {
	var id, err = topology.ParseAdminID(da.ID)
	if err != nil {
		return topology.AdminParams{}, err
	}
	sn, err := topology.ParseStorageNodeID(da.StorageNode)
	if err != nil {
		return topology.AdminParams{}, err
	}
	var a = topology.AdminParams{ID: id, StorageNode: sn}

	switch strings.ToUpper(da.Type) {
	case "", topology.PrimaryAdmin.String():
		a.Type = topology.PrimaryAdmin
	case topology.SecondaryAdmin.String():
		a.Type = topology.SecondaryAdmin
	default:
		return topology.AdminParams{}, errors.Errorf("invalid type %q", da.Type)
	}
	return a, nil
}

func parseZoneType(s string) (topology.ZoneType, error) {
	switch strings.ToUpper(s) {
	case "", topology.Primary.String():
		return topology.Primary, nil
	case topology.Secondary.String():
		return topology.Secondary, nil
	default:
		return 0, fmt.Errorf("invalid zone type %q", s)
	}
}

// parseSize parses a human-readable size such as "10GiB". An empty string is zero.
func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	var n, err = humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// formatSize inverts parseSize.
func formatSize(n int64) string {
	if n == 0 {
		return ""
	}
	return humanize.IBytes(uint64(n))
}

// NewDocument encodes |m| as a Document.
func NewDocument(m *Model) *Document {
	var t = m.Topology
	var d = &Document{Name: m.Name, Partitions: m.NumPartitions}

	for _, z := range t.SortedZones() {
		d.Zones = append(d.Zones, Zone{
			ID:             z.ID.String(),
			Name:           z.Name,
			Type:           strings.ToLower(z.Type.String()),
			RepFactor:      z.RepFactor,
			AllowArbiters:  z.AllowArbiters,
			MasterAffinity: z.MasterAffinity,
		})
	}
	for _, sn := range t.SortedStorageNodes() {
		var snp, _ = m.Params.StorageNode(sn.ID)
		var dsn = StorageNode{
			ID:            sn.ID.String(),
			Zone:          sn.Zone.String(),
			Hostname:      sn.Hostname,
			Capacity:      snp.Capacity,
			AllowArbiters: snp.AllowArbiters,
			Memory:        formatSize(int64(snp.MemoryMB) << 20),
			RootDir:       snp.RootDirPath,
			RootDirSize:   formatSize(snp.RootDirSize),
		}
		for _, sd := range snp.StorageDirs {
			dsn.StorageDirs = append(dsn.StorageDirs, StorageDir{Path: sd.Path, Size: formatSize(sd.Size)})
		}
		d.StorageNodes = append(d.StorageNodes, dsn)
	}
	for _, s := range t.SortedShards() {
		var ds = Shard{
			ID:         s.ID.String(),
			Partitions: topology.FormatPartitions(t.PartitionsOf(s.ID)),
		}
		for _, rn := range s.SortedRepNodes() {
			ds.RepNodes = append(ds.RepNodes, RepNode{
				ID:          rn.ID.String(),
				StorageNode: rn.StorageNode.String(),
				Type:        strings.ToLower(rn.Type.String()),
				Dir:         rn.StorageDir,
				Heap:        formatSize(int64(m.Params.RepNodes[rn.ID].HeapMB) << 20),
			})
		}
		for _, an := range s.SortedArbNodes() {
			ds.ArbNodes = append(ds.ArbNodes, ArbNode{ID: an.ID.String(), StorageNode: an.StorageNode.String()})
		}
		d.Shards = append(d.Shards, ds)
	}
	for _, a := range m.Params.Copy().Admins {
		d.Admins = append(d.Admins, Admin{
			ID:          a.ID.String(),
			StorageNode: a.StorageNode.String(),
			Type:        strings.ToLower(a.Type.String()),
		})
	}
	if m.Pool.Name != "" || m.Pool.Len() != 0 {
		d.Pool = &Pool{Name: m.Pool.Name}
		for _, sn := range m.Pool.StorageNodes {
			d.Pool.StorageNodes = append(d.Pool.StorageNodes, sn.String())
		}
	}
	return d
}

// CandidateModel returns a Model of Candidate |cand|, carrying the remaining
// fields of |base| and dropping admins the Candidate removed.
func CandidateModel(base *Model, cand *topology.Candidate) *Model {
	return &Model{
		Name:          cand.Name,
		Topology:      cand.Topology,
		Params:        base.Params.WithoutAdmins(cand.RemovedAdmins...),
		Pool:          base.Pool,
		NumPartitions: cand.Topology.NumPartitions(),
	}
}
