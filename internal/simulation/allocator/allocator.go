package allocator

import (
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/bucket"
	"github.com/emirpasic/gods/maps/treemap"
)

// Allocator owns every live bucket of one simulation instance. Buckets are
// kept in a tree keyed by ID so iteration order is stable between runs with
// the same seed.
type Allocator struct {
	capacity int
	nextId   bucket.BucketID
	buckets  *treemap.Map
}

func New(capacity int) (*Allocator, error) {
	if err := errs.Positive("capacity", capacity); err != nil {
		return nil, err
	}
	return &Allocator{
		capacity: capacity,
		nextId:   1,
		buckets:  treemap.NewWithIntComparator(),
	}, nil
}

func (a *Allocator) Capacity() int {
	return a.capacity
}

// NewBucket creates and registers an empty bucket.
func (a *Allocator) NewBucket(capacity int) (*bucket.Bucket, error) {
	b, err := bucket.New(a.nextId, capacity)
	if err != nil {
		return nil, err
	}
	a.nextId++
	a.buckets.Put(int(b.ID()), b)
	return b, nil
}

// Assign fills fresh buckets with the given users, capacity at a time.
func (a *Allocator) Assign(users []*bucket.User) error {
	var current *bucket.Bucket
	for _, u := range users {
		if current == nil || current.IsFull() {
			b, err := a.NewBucket(a.capacity)
			if err != nil {
				return err
			}
			current = b
		}
		if err := current.Add(u); err != nil {
			return err
		}
	}
	return nil
}

// Place puts a single user into the lowest-ID bucket with spare capacity,
// opening a new bucket when every live one is full.
func (a *Allocator) Place(u *bucket.User) (*bucket.Bucket, error) {
	it := a.buckets.Iterator()
	for it.Next() {
		b := it.Value().(*bucket.Bucket)
		if !b.IsFull() {
			return b, b.Add(u)
		}
	}
	b, err := a.NewBucket(a.capacity)
	if err != nil {
		return nil, err
	}
	return b, b.Add(u)
}

func (a *Allocator) Get(id bucket.BucketID) (*bucket.Bucket, bool) {
	if v, found := a.buckets.Get(int(id)); found {
		return v.(*bucket.Bucket), true
	}
	return nil, false
}

// Release drains and unregisters a bucket, returning its former members.
func (a *Allocator) Release(id bucket.BucketID) []*bucket.User {
	b, found := a.Get(id)
	if !found {
		return nil
	}
	a.buckets.Remove(int(id))
	return b.Drain()
}

// Buckets returns the live buckets ordered by ID.
func (a *Allocator) Buckets() []*bucket.Bucket {
	values := a.buckets.Values()
	ret := make([]*bucket.Bucket, len(values))
	for i, v := range values {
		ret[i] = v.(*bucket.Bucket)
	}
	return ret
}

func (a *Allocator) Count() int {
	return a.buckets.Size()
}

func (a *Allocator) NumUsers() int {
	total := 0
	it := a.buckets.Iterator()
	for it.Next() {
		total += it.Value().(*bucket.Bucket).Size()
	}
	return total
}
