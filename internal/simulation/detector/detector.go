package detector

import (
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/interfaces"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/bucket"
)

type Detector struct {
	oracle interfaces.AttackOracle
}

func New(oracle interfaces.AttackOracle) (*Detector, error) {
	if oracle == nil {
		return nil, errs.Precondition("attackOracle", "must not be nil")
	}
	return &Detector{oracle: oracle}, nil
}

// Detect returns the attacked buckets in input order. Empty buckets have
// nobody left to attack from and are never reported.
func (d *Detector) Detect(buckets []*bucket.Bucket) []*bucket.Bucket {
	attacked := make([]*bucket.Bucket, 0)
	for _, b := range buckets {
		if !b.IsEmpty() && d.oracle.IsBucketAttacked(b) {
			attacked = append(attacked, b)
		}
	}
	return attacked
}
