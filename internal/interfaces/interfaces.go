package interfaces

import (
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/bucket"
)

// AttackOracle decides, once per tick, whether a bucket is under attack.
type AttackOracle interface {
	IsBucketAttacked(b *bucket.Bucket) bool
}

// AttackerOracle reveals whether a user is an attacker.
type AttackerOracle interface {
	IsUserAttacker(id bucket.UserID) bool
}

// RemainingCounter is implemented by oracles that can tell how many
// attackers are still in the system.
type RemainingCounter interface {
	RemainingAttackers() int
}

// EvictionObserver is told about every user the core evicts.
type EvictionObserver interface {
	OnEvict(u *bucket.User)
}

type BucketFactory interface {
	NewBucket(capacity int) (*bucket.Bucket, error)
}

type MetricsSink interface {
	Observe(m data.TickMetrics) error
}
