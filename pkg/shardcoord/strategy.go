package shardcoord

// Range is a contiguous, half-open shard id range [Start, End) owned by one
// worker process.
type Range struct {
	Start int
	End   int
}

// Count reports the number of shards in the range.
func (r Range) Count() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether the range owns a shard id.
func (r Range) Contains(shardID int) bool {
	return shardID >= r.Start && shardID < r.End
}

// ShardIDs lists the range's shard ids in order.
func (r Range) ShardIDs() []int {
	ids := make([]int, 0, r.Count())
	for id := r.Start; id < r.End; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Partition splits [0, shardCount) into contiguous, non-overlapping ranges
// of at most shardsPerWorker shards, one per worker process. Every shard id
// appears in exactly one range; the last range may be shorter. Each worker
// runs its own dispatcher over its range but shares the cache and broker
// identity, so state stays globally consistent regardless of which worker
// produced it.
func Partition(shardCount, shardsPerWorker int) []Range {
	if shardCount <= 0 {
		return nil
	}
	if shardsPerWorker <= 0 || shardsPerWorker > shardCount {
		shardsPerWorker = shardCount
	}
	ranges := make([]Range, 0, (shardCount+shardsPerWorker-1)/shardsPerWorker)
	for start := 0; start < shardCount; start += shardsPerWorker {
		end := start + shardsPerWorker
		if end > shardCount {
			end = shardCount
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}

// WorkerRange returns the range assigned to one worker index, or ok=false
// when the index is beyond the partition.
func WorkerRange(shardCount, shardsPerWorker, workerIndex int) (Range, bool) {
	ranges := Partition(shardCount, shardsPerWorker)
	if workerIndex < 0 || workerIndex >= len(ranges) {
		return Range{}, false
	}
	return ranges[workerIndex], true
}
