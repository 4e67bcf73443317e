package adversary

import (
	"math/rand"
	"sync"

	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/interfaces"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/bucket"
	"github.com/HannahMarsh/shuffle-defense-simulation/pkg/utils"
)

// Adversary is the ground truth of one simulation instance: it knows which
// users are attackers, decides when they attack and, with RevealProbability,
// lets the defender recognise an attacker that took part in an attack.
type Adversary struct {
	rng       *rand.Rand
	attackers map[bucket.UserID]bool
	// attacking holds the outcome of each attacker's last attack decision
	attacking         map[bucket.UserID]bool
	attackProbability float64
	revealProbability float64
	evictedAttackers  int
	evictedBenign     int
	mu                sync.RWMutex
}

type Params struct {
	Users             int
	Attackers         int
	AttackProbability float64
	RevealProbability float64
}

func (p Params) validate() error {
	if p.Users < 0 {
		return errs.Precondition("users", "must not be negative, got %d", p.Users)
	}
	if p.Attackers < 0 || p.Attackers > p.Users {
		return errs.Precondition("attackers", "must be within [0, %d], got %d", p.Users, p.Attackers)
	}
	if p.AttackProbability < 0 || p.AttackProbability > 1 {
		return errs.Precondition("attackProbability", "must be within [0, 1], got %f", p.AttackProbability)
	}
	if p.RevealProbability < 0 || p.RevealProbability > 1 {
		return errs.Precondition("revealProbability", "must be within [0, 1], got %f", p.RevealProbability)
	}
	return nil
}

// New creates users 1..p.Users and marks a random subset of them as
// attackers.
func New(rng *rand.Rand, p Params) (*Adversary, []*bucket.User, error) {
	if rng == nil {
		return nil, nil, errs.Precondition("rand", "must not be nil")
	}
	if err := p.validate(); err != nil {
		return nil, nil, err
	}
	ids := utils.Map(utils.NewIntArray(1, p.Users+1), func(id int) bucket.UserID {
		return bucket.UserID(id)
	})
	corrupted := utils.RandomSubset(rng, ids, p.Attackers)

	a := &Adversary{
		rng:               rng,
		attackers:         make(map[bucket.UserID]bool),
		attacking:         make(map[bucket.UserID]bool),
		attackProbability: p.AttackProbability,
		revealProbability: p.RevealProbability,
	}
	for _, id := range corrupted {
		a.attackers[id] = true
	}

	users := utils.Map(ids, func(id bucket.UserID) *bucket.User {
		return &bucket.User{
			Id:         id,
			IsAttacker: a.attackers[id],
		}
	})
	return a, users, nil
}

// IsBucketAttacked lets every attacker in the bucket decide independently
// whether to attack this tick.
func (a *Adversary) IsBucketAttacked(b *bucket.Bucket) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	attacked := false
	for _, id := range b.UserIDs() {
		if !a.attackers[id] {
			continue
		}
		fires := a.rng.Float64() < a.attackProbability
		a.attacking[id] = fires
		if fires {
			attacked = true
		}
	}
	return attacked
}

// IsUserAttacker only ever confirms an attacker whose last decision was to
// attack, and then only with RevealProbability.
func (a *Adversary) IsUserAttacker(id bucket.UserID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.attackers[id] || !a.attacking[id] || a.revealProbability <= 0 {
		return false
	}
	return a.rng.Float64() < a.revealProbability
}

func (a *Adversary) OnEvict(u *bucket.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attackers[u.Id] {
		delete(a.attackers, u.Id)
		delete(a.attacking, u.Id)
		a.evictedAttackers++
	} else {
		a.evictedBenign++
	}
}

func (a *Adversary) RemainingAttackers() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.attackers)
}

func (a *Adversary) EvictedAttackers() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.evictedAttackers
}

func (a *Adversary) EvictedBenign() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.evictedBenign
}

func (a *Adversary) IsAttacker(id bucket.UserID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.attackers[id]
}

// Sink replaces the defender's eviction count with the ground-truth split
// between attackers and benign users before passing the observation on.
func (a *Adversary) Sink(next interfaces.MetricsSink) interfaces.MetricsSink {
	return &groundTruthSink{adversary: a, next: next}
}

type groundTruthSink struct {
	adversary *Adversary
	next      interfaces.MetricsSink
}

func (s *groundTruthSink) Observe(m data.TickMetrics) error {
	m.EvictedAttackers = s.adversary.EvictedAttackers()
	m.EvictedBenign = s.adversary.EvictedBenign()
	m.RemainingAttackers = s.adversary.RemainingAttackers()
	if s.next == nil {
		return nil
	}
	return s.next.Observe(m)
}
