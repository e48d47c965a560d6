package topology

import (
	"fmt"
	"strconv"
	"strings"
)

// ZoneID identifies a Zone, eg "zn1".
type ZoneID int

// StorageNodeID identifies a StorageNode, eg "sn1".
type StorageNodeID int

// ShardID identifies a Shard (replication group), eg "rg1".
type ShardID int

// PartitionID identifies a Partition of the key-space. Partitions are
// numbered from 1.
type PartitionID int

// AdminID identifies an admin service instance, eg "admin1".
type AdminID int

// RepNodeID identifies a RepNode within its Shard, eg "rg1-rn2".
type RepNodeID struct {
	Shard ShardID
	Node  int
}

// ArbNodeID identifies an ArbNode within its Shard, eg "rg1-an1".
type ArbNodeID struct {
	Shard ShardID
	Node  int
}

const (
	zonePrefix        = "zn"
	storageNodePrefix = "sn"
	shardPrefix       = "rg"
	adminPrefix       = "admin"
	repNodeInfix      = "-rn"
	arbNodeInfix      = "-an"
)

func (id ZoneID) String() string        { return zonePrefix + strconv.Itoa(int(id)) }
func (id StorageNodeID) String() string { return storageNodePrefix + strconv.Itoa(int(id)) }
func (id ShardID) String() string       { return shardPrefix + strconv.Itoa(int(id)) }
func (id AdminID) String() string       { return adminPrefix + strconv.Itoa(int(id)) }
func (id PartitionID) String() string   { return strconv.Itoa(int(id)) }

func (id RepNodeID) String() string {
	return id.Shard.String() + repNodeInfix + strconv.Itoa(id.Node)
}

func (id ArbNodeID) String() string {
	return id.Shard.String() + arbNodeInfix + strconv.Itoa(id.Node)
}

// Less orders RepNodeIDs on (Shard, Node).
func (id RepNodeID) Less(other RepNodeID) bool {
	if id.Shard != other.Shard {
		return id.Shard < other.Shard
	}
	return id.Node < other.Node
}

// Less orders ArbNodeIDs on (Shard, Node).
func (id ArbNodeID) Less(other ArbNodeID) bool {
	if id.Shard != other.Shard {
		return id.Shard < other.Shard
	}
	return id.Node < other.Node
}

// ParseZoneID parses the String form of a ZoneID.
func ParseZoneID(s string) (ZoneID, error) {
	var n, err = parseSeq(zonePrefix, s)
	return ZoneID(n), err
}

// ParseStorageNodeID parses the String form of a StorageNodeID.
func ParseStorageNodeID(s string) (StorageNodeID, error) {
	var n, err = parseSeq(storageNodePrefix, s)
	return StorageNodeID(n), err
}

// ParseShardID parses the String form of a ShardID.
func ParseShardID(s string) (ShardID, error) {
	var n, err = parseSeq(shardPrefix, s)
	return ShardID(n), err
}

// ParseAdminID parses the String form of an AdminID.
func ParseAdminID(s string) (AdminID, error) {
	var n, err = parseSeq(adminPrefix, s)
	return AdminID(n), err
}

// ParseRepNodeID parses the String form of a RepNodeID.
func ParseRepNodeID(s string) (RepNodeID, error) {
	var shard, node, err = parseNodeID(repNodeInfix, s)
	return RepNodeID{Shard: shard, Node: node}, err
}

// ParseArbNodeID parses the String form of an ArbNodeID.
func ParseArbNodeID(s string) (ArbNodeID, error) {
	var shard, node, err = parseNodeID(arbNodeInfix, s)
	return ArbNodeID{Shard: shard, Node: node}, err
}

func parseNodeID(infix, s string) (ShardID, int, error) {
	var ind = strings.Index(s, infix)
	if ind == -1 {
		return 0, 0, fmt.Errorf("expected <shard>%s<n> (%q)", infix, s)
	}
	var shard, err = ParseShardID(s[:ind])
	if err != nil {
		return 0, 0, err
	}
	node, err := strconv.Atoi(s[ind+len(infix):])
	if err != nil || node <= 0 {
		return 0, 0, fmt.Errorf("invalid node number (%q)", s)
	}
	return shard, node, nil
}

func parseSeq(prefix, s string) (int, error) {
	if !strings.HasPrefix(s, prefix) {
		return 0, fmt.Errorf("expected prefix %q (%q)", prefix, s)
	}
	var n, err = strconv.Atoi(s[len(prefix):])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid sequence number (%q)", s)
	}
	return n, nil
}
