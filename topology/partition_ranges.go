package topology

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FormatPartitions renders |ps| as sorted, comma-separated ranges, eg "1-34,40".
func FormatPartitions(ps []PartitionID) string {
	var sorted = append([]PartitionID(nil), ps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var b strings.Builder
	for i := 0; i < len(sorted); {
		var j = i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		if b.Len() != 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(sorted[i])))
		if j != i {
			b.WriteString("-" + strconv.Itoa(int(sorted[j])))
		}
		i = j + 1
	}
	return b.String()
}

// MaxPartitions is the largest number of Partitions a Topology may have.
const MaxPartitions = 1 << 20

// ParsePartitions inverts FormatPartitions. Partitions greater than |limit|
// are an error, as are those greater than MaxPartitions if |limit| is zero.
func ParsePartitions(s string, limit int) ([]PartitionID, error) {
	if limit <= 0 || limit > MaxPartitions {
		limit = MaxPartitions
	}
	var out []PartitionID
	if s = strings.TrimSpace(s); s == "" {
		return nil, nil
	}
	for _, part := range strings.Split(s, ",") {
		var lo, hi, err = parseRange(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("parsing partitions %q: %w", s, err)
		} else if int(hi) > limit {
			return nil, fmt.Errorf("parsing partitions %q: partition %d exceeds the limit of %d", s, hi, limit)
		}
		for p := lo; p <= hi; p++ {
			out = append(out, p)
		}
	}
	return out, nil
}

func parseRange(s string) (lo, hi PartitionID, err error) {
	var a, b, isRange = strings.Cut(s, "-")
	var n, m int
	if n, err = strconv.Atoi(a); err != nil {
		return 0, 0, err
	}
	m = n
	if isRange {
		if m, err = strconv.Atoi(b); err != nil {
			return 0, 0, err
		}
	}
	if n <= 0 || m < n {
		return 0, 0, fmt.Errorf("invalid range %q", s)
	}
	return PartitionID(n), PartitionID(m), nil
}
