package shuffle

import (
	"math"
	"math/rand"

	pl "github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/interfaces"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/bucket"
	"github.com/HannahMarsh/shuffle-defense-simulation/pkg/utils"
)

type Split struct {
	From bucket.BucketID
	Into []bucket.BucketID
}

// summed shares such as 10 * 0.1 land just under the integer they represent
const tolerance = 1e-9

// PartitionCount is floor(totalRisk / riskPerBucket) clamped to the number
// of users; anything <= 1 means the bucket stays as it is.
func PartitionCount(totalRisk, riskPerBucket float64, users int) int {
	k := int(math.Floor(totalRisk/riskPerBucket + tolerance))
	if k <= 1 {
		return k
	}
	return utils.Min(k, users)
}

// Partition chunks members into k groups, optionally permuting them first.
func Partition(members []*bucket.User, k int, rng *rand.Rand) [][]*bucket.User {
	if rng != nil {
		members = utils.Copy(members)
		utils.Shuffle(rng, members)
	}
	return utils.Chunk(members, k)
}

// realize moves each group into a fresh bucket from the factory.
func realize(factory interfaces.BucketFactory, capacity int, groups [][]*bucket.User) ([]bucket.BucketID, error) {
	ids := make([]bucket.BucketID, 0, len(groups))
	for _, group := range groups {
		nb, err := factory.NewBucket(capacity)
		if err != nil {
			return ids, pl.WrapError(err, "shuffle.realize(): failed to allocate bucket")
		}
		for _, u := range group {
			if err = nb.Add(u); err != nil {
				return ids, pl.WrapError(err, "shuffle.realize(): failed to move user %d", u.Id)
			}
		}
		ids = append(ids, nb.ID())
	}
	return ids, nil
}
