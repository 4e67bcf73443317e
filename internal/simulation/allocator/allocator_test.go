package allocator

import (
	"testing"

	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/bucket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func users(n int) []*bucket.User {
	ret := make([]*bucket.User, n)
	for i := range ret {
		ret[i] = &bucket.User{Id: bucket.UserID(i + 1)}
	}
	return ret
}

func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0)
	assert.True(t, errs.IsPrecondition(err))
}

func TestAssign_FillsBucketsInOrder(t *testing.T) {
	a, err := New(4)
	require.NoError(t, err)
	require.NoError(t, a.Assign(users(10)))

	buckets := a.Buckets()
	require.Len(t, buckets, 3)
	assert.Equal(t, []bucket.UserID{1, 2, 3, 4}, buckets[0].UserIDs())
	assert.Equal(t, []bucket.UserID{5, 6, 7, 8}, buckets[1].UserIDs())
	assert.Equal(t, []bucket.UserID{9, 10}, buckets[2].UserIDs())
	assert.Equal(t, 10, a.NumUsers())

	for _, b := range buckets {
		assert.LessOrEqual(t, b.Size(), b.Capacity())
	}
}

func TestAssign_NoUsers(t *testing.T) {
	a, _ := New(4)
	require.NoError(t, a.Assign(nil))
	assert.Zero(t, a.Count())
}

func TestNewBucket_IdsAreUniqueAndIncreasing(t *testing.T) {
	a, _ := New(2)
	b1, err := a.NewBucket(2)
	require.NoError(t, err)
	b2, err := a.NewBucket(2)
	require.NoError(t, err)
	assert.Less(t, b1.ID(), b2.ID())

	a.Release(b1.ID())
	b3, _ := a.NewBucket(2)
	assert.Greater(t, b3.ID(), b2.ID())
}

func TestPlace_UsesSpareCapacityBeforeOpening(t *testing.T) {
	a, _ := New(3)
	require.NoError(t, a.Assign(users(4)))

	b, err := a.Place(&bucket.User{Id: 100})
	require.NoError(t, err)
	assert.Equal(t, a.Buckets()[1].ID(), b.ID())
	assert.Equal(t, 2, a.Count())

	require.NoError(t, a.Assign(nil))
	_, err = a.Place(&bucket.User{Id: 101})
	require.NoError(t, err)
	b, err = a.Place(&bucket.User{Id: 102})
	require.NoError(t, err)
	assert.Equal(t, 3, a.Count())
	assert.Equal(t, []bucket.UserID{102}, b.UserIDs())
}

func TestRelease(t *testing.T) {
	a, _ := New(3)
	require.NoError(t, a.Assign(users(3)))
	id := a.Buckets()[0].ID()

	members := a.Release(id)
	assert.Len(t, members, 3)
	_, found := a.Get(id)
	assert.False(t, found)
	assert.Zero(t, a.Count())

	assert.Nil(t, a.Release(id))
}
