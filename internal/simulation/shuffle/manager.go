package shuffle

import (
	"context"
	"math/rand"
	"sync"

	pl "github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/interfaces"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/allocator"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/bucket"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/detector"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/suspicion"
	"github.com/HannahMarsh/shuffle-defense-simulation/pkg/utils"
	"golang.org/x/exp/slog"
)

type Options struct {
	RunId         string
	RiskPerBucket float64
	// EvictIsolated confirms the lone occupant of an attacked bucket
	// without asking the attacker oracle.
	EvictIsolated bool
	// ShuffleBeforeSplit permutes members with Rand before chunking.
	ShuffleBeforeSplit bool
	StopWhenClean      bool
	Rand               *rand.Rand
	Observer           interfaces.EvictionObserver
	// PhaseListener, if set, is called on every phase change while the
	// tick lock is held.
	PhaseListener func(tick int, p Phase)
}

type TickReport struct {
	Tick     int
	Attacked []bucket.BucketID
	Evicted  []bucket.UserID
	Splits   []Split
}

type BucketView struct {
	Id    bucket.BucketID
	Users []bucket.UserID
	Risk  []float64
}

type Snapshot struct {
	Tick    int
	Buckets []BucketView
}

// Manager drives one simulation instance. A tick runs DETECTING, SCORING and
// RESHUFFLING under the write lock, so readers never see a half-applied tick.
type Manager struct {
	allocator *allocator.Allocator
	detector  *detector.Detector
	tracker   *suspicion.Tracker
	attackers interfaces.AttackerOracle
	opts      Options
	users     map[bucket.UserID]*bucket.User
	// joined holds buckets that took late joiners since the last tick
	joined  map[bucket.BucketID]bool
	state   Phase
	tick    int
	evicted int
	last    TickReport
	mu      sync.RWMutex
}

func NewManager(a *allocator.Allocator, d *detector.Detector, t *suspicion.Tracker, attackers interfaces.AttackerOracle, opts Options) (*Manager, error) {
	if a == nil {
		return nil, errs.Precondition("allocator", "must not be nil")
	}
	if d == nil {
		return nil, errs.Precondition("detector", "must not be nil")
	}
	if t == nil {
		return nil, errs.Precondition("tracker", "must not be nil")
	}
	if attackers == nil {
		return nil, errs.Precondition("attackerOracle", "must not be nil")
	}
	if err := errs.Positive("riskPerBucket", opts.RiskPerBucket); err != nil {
		return nil, err
	}
	if opts.ShuffleBeforeSplit && opts.Rand == nil {
		return nil, errs.Precondition("rand", "is required when shuffleBeforeSplit is set")
	}
	return &Manager{
		allocator: a,
		detector:  d,
		tracker:   t,
		attackers: attackers,
		opts:      opts,
		users:     make(map[bucket.UserID]*bucket.User),
		joined:    make(map[bucket.BucketID]bool),
		state:     Idle,
	}, nil
}

// Populate assigns the initial population, capacity users per bucket.
func (m *Manager) Populate(users []*bucket.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		if _, present := m.users[u.Id]; present {
			return errs.Precondition("users", "contain duplicate id %d", u.Id)
		}
	}
	if err := m.allocator.Assign(users); err != nil {
		return err
	}
	for _, u := range users {
		m.users[u.Id] = u
	}
	return nil
}

// AddUsers places late joiners into buckets with spare room. Those buckets
// are reconsidered for a split on the next tick.
func (m *Manager) AddUsers(users []*bucket.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		if _, present := m.users[u.Id]; present {
			return errs.Precondition("users", "contain duplicate id %d", u.Id)
		}
		b, err := m.allocator.Place(u)
		if err != nil {
			return err
		}
		m.users[u.Id] = u
		m.joined[b.ID()] = true
	}
	return nil
}

func (m *Manager) setState(p Phase) {
	m.state = p
	if m.opts.PhaseListener != nil {
		m.opts.PhaseListener(m.tick, p)
	}
}

// Tick runs one full DETECTING -> SCORING -> RESHUFFLING cycle.
func (m *Manager) Tick(ctx context.Context) (TickReport, error) {
	if err := ctx.Err(); err != nil {
		return TickReport{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tick++
	report := TickReport{
		Tick:     m.tick,
		Attacked: make([]bucket.BucketID, 0),
		Evicted:  make([]bucket.UserID, 0),
		Splits:   make([]Split, 0),
	}

	m.setState(Detecting)
	attacked := m.detector.Detect(m.allocator.Buckets())
	for _, b := range attacked {
		m.tracker.RecordAttack(b, m.tick)
		report.Attacked = append(report.Attacked, b.ID())
	}

	m.setState(Scoring)
	for _, id := range m.confirmed(attacked) {
		if m.evict(id) {
			report.Evicted = append(report.Evicted, id)
		}
	}

	m.setState(Reshuffling)
	for _, b := range m.candidates(attacked) {
		split, err := m.reshuffle(b)
		if err != nil {
			m.setState(Idle)
			return report, pl.WrapError(err, "shuffle.Tick(): failed to reshuffle bucket %d", b.ID())
		}
		if split != nil {
			report.Splits = append(report.Splits, *split)
		}
	}

	m.setState(Idle)
	m.last = report
	slog.Debug("tick done", "run", m.opts.RunId, "tick", m.tick, "attacked", len(report.Attacked), "evicted", len(report.Evicted), "splits", len(report.Splits), "buckets", m.allocator.Count())
	return report, nil
}

// confirmed lists the users evicted this tick in ascending ID order: every
// user the attacker oracle confirms and, with EvictIsolated, the lone
// occupant of an attacked bucket.
func (m *Manager) confirmed(attacked []*bucket.Bucket) []bucket.UserID {
	isolated := make(map[bucket.UserID]bool)
	if m.opts.EvictIsolated {
		for _, b := range attacked {
			if b.Size() == 1 {
				isolated[b.UserIDs()[0]] = true
			}
		}
	}
	ids := utils.GetKeys(m.users)
	utils.SortOrdered(ids)
	ret := make([]bucket.UserID, 0)
	for _, id := range ids {
		if m.attackers.IsUserAttacker(id) || isolated[id] {
			ret = append(ret, id)
		}
	}
	return ret
}

// candidates returns the buckets attacked this tick followed by the buckets
// that took late joiners, without duplicates.
func (m *Manager) candidates(attacked []*bucket.Bucket) []*bucket.Bucket {
	ret := make([]*bucket.Bucket, 0, len(attacked)+len(m.joined))
	seen := make(map[bucket.BucketID]bool)
	for _, b := range attacked {
		seen[b.ID()] = true
		ret = append(ret, b)
	}
	joined := utils.GetKeys(m.joined)
	utils.SortOrdered(joined)
	for _, id := range joined {
		delete(m.joined, id)
		if seen[id] {
			continue
		}
		if b, live := m.allocator.Get(id); live {
			ret = append(ret, b)
		}
	}
	return ret
}

// Evict removes a confirmed attacker from its bucket and backs its
// suspicion history out. Unknown users are a logged no-op.
func (m *Manager) Evict(id bucket.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evict(id)
}

func (m *Manager) evict(id bucket.UserID) bool {
	u, present := m.users[id]
	if !present {
		slog.Warn("cannot evict user that is not in any bucket", "run", m.opts.RunId, "user", id)
		return false
	}
	if m.tracker.Tracks(id) {
		m.tracker.RemoveUser(id)
	}
	if b, found := m.allocator.Get(u.BucketId); !found {
		slog.Warn("evicted user points at a missing bucket", "run", m.opts.RunId, "user", id, "bucket", u.BucketId)
	} else if _, ok := b.Remove(id); !ok {
		slog.Warn("evicted user was not in its bucket", "run", m.opts.RunId, "user", id, "bucket", u.BucketId)
	} else if b.IsEmpty() {
		m.allocator.Release(b.ID())
	}
	delete(m.users, id)
	m.evicted++
	if m.opts.Observer != nil {
		m.opts.Observer.OnEvict(u)
	}
	return true
}

func (m *Manager) reshuffle(b *bucket.Bucket) (*Split, error) {
	if _, live := m.allocator.Get(b.ID()); !live {
		return nil, nil
	}
	k := PartitionCount(b.TotalRisk(), m.opts.RiskPerBucket, b.Size())
	if k <= 1 {
		return nil, nil
	}
	var rng *rand.Rand
	if m.opts.ShuffleBeforeSplit {
		rng = m.opts.Rand
	}
	groups := Partition(m.allocator.Release(b.ID()), k, rng)
	into, err := realize(m.allocator, m.allocator.Capacity(), groups)
	if err != nil {
		return nil, err
	}
	return &Split{From: b.ID(), Into: into}, nil
}

// Run ticks until maxTicks (0 = no limit), the context is cancelled, or,
// with StopWhenClean, the attacker oracle reports nobody left. The sink sees
// the metrics of every completed tick.
func (m *Manager) Run(ctx context.Context, maxTicks int, sink interfaces.MetricsSink) (StopReason, error) {
	for maxTicks == 0 || m.CurrentTick() < maxTicks {
		if m.opts.StopWhenClean && m.isClean() {
			return StopClean, nil
		}
		if ctx.Err() != nil {
			return StopCancelled, nil
		}
		if _, err := m.Tick(ctx); err != nil {
			return "", err
		}
		if sink != nil {
			if err := sink.Observe(m.Metrics()); err != nil {
				return "", pl.WrapError(err, "shuffle.Run(): metrics sink failed at tick %d", m.CurrentTick())
			}
		}
	}
	if m.opts.StopWhenClean && m.isClean() {
		return StopClean, nil
	}
	return StopMaxTicks, nil
}

func (m *Manager) isClean() bool {
	if rc, ok := m.attackers.(interfaces.RemainingCounter); ok {
		return rc.RemainingAttackers() == 0
	}
	return false
}

func (m *Manager) State() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) CurrentTick() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tick
}

func (m *Manager) LastReport() TickReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Metrics summarises the state after the last completed tick.
func (m *Manager) Metrics() data.TickMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buckets := m.allocator.Count()
	users := m.allocator.NumUsers()
	occupancy := 0.0
	if buckets > 0 {
		occupancy = float64(users) / float64(buckets)
	}
	return data.TickMetrics{
		RunId:            m.opts.RunId,
		Tick:             m.tick,
		Buckets:          buckets,
		AverageOccupancy: occupancy,
		Users:            users,
		AttackedBuckets:  len(m.last.Attacked),
		EvictedThisTick:  len(m.last.Evicted),
		EvictedAttackers: m.evicted,
		TotalRisk:        m.tracker.TotalRisk(),
	}
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buckets := m.allocator.Buckets()
	views := make([]BucketView, len(buckets))
	for i, b := range buckets {
		members := b.Users()
		views[i] = BucketView{
			Id:    b.ID(),
			Users: make([]bucket.UserID, len(members)),
			Risk:  make([]float64, len(members)),
		}
		for j, u := range members {
			views[i].Users[j] = u.Id
			views[i].Risk[j] = u.Risk
		}
	}
	return Snapshot{Tick: m.tick, Buckets: views}
}

func (m *Manager) TopSuspects(k int) []suspicion.Suspect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracker.TopSuspects(k)
}
