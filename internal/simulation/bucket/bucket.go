package bucket

import (
	"fmt"

	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
)

type UserID int

type BucketID int

// User is a simulated client. Risk is owned by the suspicion tracker; the
// attacker flag is ground truth and only the oracles may look at it.
type User struct {
	Id         UserID
	Risk       float64
	IsAttacker bool
	BucketId   BucketID
}

type Bucket struct {
	id       BucketID
	capacity int
	users    []*User
}

func New(id BucketID, capacity int) (*Bucket, error) {
	if err := errs.Positive("capacity", capacity); err != nil {
		return nil, err
	}
	return &Bucket{
		id:       id,
		capacity: capacity,
		users:    make([]*User, 0, capacity),
	}, nil
}

func (b *Bucket) ID() BucketID {
	return b.id
}

func (b *Bucket) Capacity() int {
	return b.capacity
}

func (b *Bucket) Size() int {
	return len(b.users)
}

func (b *Bucket) IsFull() bool {
	return len(b.users) >= b.capacity
}

func (b *Bucket) IsEmpty() bool {
	return len(b.users) == 0
}

// Users returns a copy of the member list in insertion order.
func (b *Bucket) Users() []*User {
	users := make([]*User, len(b.users))
	copy(users, b.users)
	return users
}

func (b *Bucket) UserIDs() []UserID {
	ids := make([]UserID, len(b.users))
	for i, u := range b.users {
		ids[i] = u.Id
	}
	return ids
}

func (b *Bucket) Add(u *User) error {
	if b.IsFull() {
		return errs.Precondition("bucket", "%d is full (capacity %d), cannot add user %d", b.id, b.capacity, u.Id)
	}
	u.BucketId = b.id
	b.users = append(b.users, u)
	return nil
}

// Remove drops the user from the bucket and reports whether it was present.
func (b *Bucket) Remove(id UserID) (*User, bool) {
	for i, u := range b.users {
		if u.Id == id {
			b.users = append(b.users[:i], b.users[i+1:]...)
			return u, true
		}
	}
	return nil, false
}

func (b *Bucket) Contains(id UserID) bool {
	for _, u := range b.users {
		if u.Id == id {
			return true
		}
	}
	return false
}

func (b *Bucket) TotalRisk() float64 {
	total := 0.0
	for _, u := range b.users {
		total += u.Risk
	}
	return total
}

// Drain empties the bucket and hands back its former members.
func (b *Bucket) Drain() []*User {
	users := b.users
	b.users = make([]*User, 0)
	return users
}

func (b *Bucket) String() string {
	return fmt.Sprintf("Bucket %d (%d/%d)", b.id, len(b.users), b.capacity)
}
