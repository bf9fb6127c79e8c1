package metrics

import "sort"

// StatusBucket is one row of a tally's bucket table.
type StatusBucket struct {
	Code  string
	Count int64
}

// SortedBuckets converts a bucket map into rows sorted by descending count,
// then by code for stability.
func SortedBuckets(buckets map[string]int64) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(buckets))
	for code, count := range buckets {
		rows = append(rows, StatusBucket{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
