package jobs

import (
	"fmt"
	"path/filepath"

	"github.com/nvandessel/sweep/internal/constants"
)

// ShardPlanner assigns conditions to job-set sub-directories so that no
// shard holds more than limit replicates. A limit of -1 disables sharding.
//
// State is {shard, count}. After a condition's replicates are added, the
// planner moves to the next shard if another condition of the same size
// would push count past limit.
type ShardPlanner struct {
	root  string
	limit int
	shard int
	count int
}

// NewShardPlanner returns a planner placing shards under root.
func NewShardPlanner(root string, limit int) *ShardPlanner {
	return &ShardPlanner{root: root, limit: limit}
}

// Enabled reports whether scripts are split into shard directories.
func (s *ShardPlanner) Enabled() bool {
	return s.limit > constants.ShardingDisabled
}

// Shard returns the current shard index.
func (s *ShardPlanner) Shard() int {
	return s.shard
}

// Dir returns the directory the current condition's scripts go to.
func (s *ShardPlanner) Dir() string {
	if !s.Enabled() {
		return s.root
	}
	return filepath.Join(s.root, fmt.Sprintf("%s%d", constants.JobSetPrefix, s.shard))
}

// Advance records that a condition with the given number of replicates was
// placed in the current shard. It reports whether the planner moved on to a
// new shard.
func (s *ShardPlanner) Advance(replicates int) bool {
	s.count += replicates
	if !s.Enabled() || s.count <= s.limit-replicates {
		return false
	}
	s.count = 0
	s.shard++
	return true
}
