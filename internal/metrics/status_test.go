package metrics

import (
	"reflect"
	"testing"
)

func TestSortedBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets map[string]int64
		want    []StatusBucket
	}{
		{
			name:    "nil buckets",
			buckets: nil,
			want:    nil,
		},
		{
			name:    "empty buckets",
			buckets: map[string]int64{},
			want:    nil,
		},
		{
			name:    "single bucket",
			buckets: map[string]int64{"200": 10},
			want:    []StatusBucket{{Code: "200", Count: 10}},
		},
		{
			name:    "sorted by count desc",
			buckets: map[string]int64{"200": 10, "404": 5, "error": 20},
			want: []StatusBucket{
				{Code: "error", Count: 20},
				{Code: "200", Count: 10},
				{Code: "404", Count: 5},
			},
		},
		{
			name:    "ties sorted by code",
			buckets: map[string]int64{"500": 3, "404": 3, "200": 3},
			want: []StatusBucket{
				{Code: "200", Count: 3},
				{Code: "404", Count: 3},
				{Code: "500", Count: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SortedBuckets(tt.buckets)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SortedBuckets() = %v, want %v", got, tt.want)
			}
		})
	}
}
