package suspicion

import (
	"math"

	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/bucket"
	"github.com/HannahMarsh/shuffle-defense-simulation/pkg/utils"
	"golang.org/x/exp/slog"
)

// risk left over after backing out an event is rounding noise below this
const epsilon = 1e-9

type AttackEvent struct {
	Id       int
	BucketId bucket.BucketID
	Tick     int
	Members  []bucket.UserID
	Share    float64
}

// Tracker accumulates per-user risk from attack events. An attack on a
// bucket of n users adds C/n to every member, so one event always puts
// exactly C into the system no matter how many users share the bucket.
type Tracker struct {
	constant    float64
	nextEventId int
	events      map[int]*AttackEvent
	byUser      map[bucket.UserID]map[int]struct{}
	users       map[bucket.UserID]*bucket.User
	removed     map[bucket.UserID]bool
}

func NewTracker(constant float64) (*Tracker, error) {
	if err := errs.Positive("riskConstant", constant); err != nil {
		return nil, err
	}
	return &Tracker{
		constant:    constant,
		nextEventId: 1,
		events:      make(map[int]*AttackEvent),
		byUser:      make(map[bucket.UserID]map[int]struct{}),
		users:       make(map[bucket.UserID]*bucket.User),
		removed:     make(map[bucket.UserID]bool),
	}, nil
}

// RecordAttack spreads one unit of suspicion over the members of b. An
// empty bucket yields no event.
func (t *Tracker) RecordAttack(b *bucket.Bucket, tick int) *AttackEvent {
	members := b.Users()
	if len(members) == 0 {
		return nil
	}
	share := t.constant / float64(len(members))
	ev := &AttackEvent{
		Id:       t.nextEventId,
		BucketId: b.ID(),
		Tick:     tick,
		Members:  make([]bucket.UserID, len(members)),
		Share:    share,
	}
	t.nextEventId++

	for i, u := range members {
		u.Risk += share
		ev.Members[i] = u.Id
		t.users[u.Id] = u
		if _, present := t.byUser[u.Id]; !present {
			t.byUser[u.Id] = make(map[int]struct{})
		}
		t.byUser[u.Id][ev.Id] = struct{}{}
	}
	t.events[ev.Id] = ev
	return ev
}

// RemoveUser forgets a confirmed attacker. Every event it took part in is
// considered explained: its share is taken back from the other members that
// are still around and the event is dropped. Removing the same user twice,
// or a user that was never in an attacked bucket, is a no-op.
func (t *Tracker) RemoveUser(id bucket.UserID) bool {
	if t.removed[id] {
		slog.Warn("user already removed from suspicion tracker", "user", id)
		return false
	}
	if !t.Tracks(id) {
		slog.Warn("user is unknown to the suspicion tracker", "user", id)
		return false
	}
	t.removed[id] = true

	eventIds := utils.GetKeys(t.byUser[id])
	utils.SortOrdered(eventIds)
	for _, eventId := range eventIds {
		ev := t.events[eventId]
		for _, member := range ev.Members {
			if member == id || t.removed[member] {
				continue
			}
			if u, present := t.users[member]; present {
				u.Risk -= ev.Share
				if math.Abs(u.Risk) < epsilon {
					u.Risk = 0
				}
			}
			delete(t.byUser[member], eventId)
			if len(t.byUser[member]) == 0 {
				delete(t.byUser, member)
			}
		}
		delete(t.events, eventId)
	}
	delete(t.byUser, id)

	if u, present := t.users[id]; present {
		u.Risk = 0
		delete(t.users, id)
	}
	return true
}

// Tracks reports whether id took part in a recorded attack and has not been
// removed.
func (t *Tracker) Tracks(id bucket.UserID) bool {
	_, present := t.users[id]
	return present
}

func (t *Tracker) IsRemoved(id bucket.UserID) bool {
	return t.removed[id]
}

func (t *Tracker) Risk(id bucket.UserID) float64 {
	if u, present := t.users[id]; present {
		return u.Risk
	}
	return 0
}

// TotalRisk sums in user ID order so equal histories give equal totals.
func (t *Tracker) TotalRisk() float64 {
	ids := utils.GetKeys(t.users)
	utils.SortOrdered(ids)
	total := 0.0
	for _, id := range ids {
		total += t.users[id].Risk
	}
	return total
}

func (t *Tracker) NumEvents() int {
	return len(t.events)
}

// Events returns a copy of the live events ordered by ID.
func (t *Tracker) Events() []AttackEvent {
	events := make([]AttackEvent, 0, len(t.events))
	for _, ev := range t.events {
		events = append(events, copyEvent(ev))
	}
	utils.Sort(events, func(a, b AttackEvent) bool {
		return a.Id < b.Id
	})
	return events
}

func (t *Tracker) EventsFor(id bucket.UserID) []AttackEvent {
	events := make([]AttackEvent, 0, len(t.byUser[id]))
	for eventId := range t.byUser[id] {
		events = append(events, copyEvent(t.events[eventId]))
	}
	utils.Sort(events, func(a, b AttackEvent) bool {
		return a.Id < b.Id
	})
	return events
}

type Suspect struct {
	Id   bucket.UserID
	Risk float64
}

// TopSuspects returns up to k tracked users with the highest risk. Ties are
// broken by lower user ID.
func (t *Tracker) TopSuspects(k int) []Suspect {
	if k <= 0 {
		return make([]Suspect, 0)
	}
	heap := utils.NewSafeHeap(func(a, b Suspect) bool {
		if a.Risk != b.Risk {
			return a.Risk > b.Risk
		}
		return a.Id < b.Id
	})
	for id, u := range t.users {
		if u.Risk > 0 {
			heap.Push(Suspect{Id: id, Risk: u.Risk})
		}
	}
	suspects := make([]Suspect, 0, utils.Min(k, heap.Size()))
	for len(suspects) < k {
		s, ok := heap.Pop()
		if !ok {
			break
		}
		suspects = append(suspects, s)
	}
	return suspects
}

func copyEvent(ev *AttackEvent) AttackEvent {
	c := *ev
	c.Members = make([]bucket.UserID, len(ev.Members))
	copy(c.Members, ev.Members)
	return c
}
