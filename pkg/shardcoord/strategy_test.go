package shardcoord_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-gateway-state/pkg/shardcoord"
)

func TestPartition_CoversEveryShardExactlyOnce(t *testing.T) {
	testCases := []struct {
		name            string
		shardCount      int
		shardsPerWorker int
	}{
		{"even split", 16, 4},
		{"uneven tail", 10, 4},
		{"single worker", 5, 5},
		{"more capacity than shards", 3, 8},
		{"one shard per worker", 4, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ranges := shardcoord.Partition(tc.shardCount, tc.shardsPerWorker)

			seen := make(map[int]int)
			for _, r := range ranges {
				for _, id := range r.ShardIDs() {
					seen[id]++
				}
			}
			require.Len(t, seen, tc.shardCount, "every shard id must be assigned")
			for id, count := range seen {
				assert.Equal(t, 1, count, "shard %d assigned %d times", id, count)
				assert.GreaterOrEqual(t, id, 0)
				assert.Less(t, id, tc.shardCount)
			}
		})
	}
}

func TestPartition_RangesAreContiguous(t *testing.T) {
	ranges := shardcoord.Partition(10, 3)

	require.Len(t, ranges, 4)
	next := 0
	for _, r := range ranges {
		assert.Equal(t, next, r.Start)
		next = r.End
	}
	assert.Equal(t, 10, next)
}

func TestPartition_DegenerateInputs(t *testing.T) {
	assert.Nil(t, shardcoord.Partition(0, 4))
	assert.Nil(t, shardcoord.Partition(-1, 4))

	// Non-positive per-worker size collapses to a single range.
	ranges := shardcoord.Partition(6, 0)
	require.Len(t, ranges, 1)
	assert.Equal(t, shardcoord.Range{Start: 0, End: 6}, ranges[0])
}

func TestWorkerRange(t *testing.T) {
	r, ok := shardcoord.WorkerRange(10, 4, 2)
	require.True(t, ok)
	assert.Equal(t, shardcoord.Range{Start: 8, End: 10}, r)

	_, ok = shardcoord.WorkerRange(10, 4, 3)
	assert.False(t, ok)
}

func TestRange_Helpers(t *testing.T) {
	r := shardcoord.Range{Start: 4, End: 8}

	assert.Equal(t, 4, r.Count())
	assert.Equal(t, []int{4, 5, 6, 7}, r.ShardIDs())
	assert.True(t, r.Contains(4))
	assert.True(t, r.Contains(7))
	assert.False(t, r.Contains(8))
	assert.False(t, r.Contains(3))
}
