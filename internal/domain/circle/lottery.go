package circle

import "math/rand/v2"

// ShuffleFunc permutes n elements through swap. rand.Shuffle satisfies it.
type ShuffleFunc func(n int, swap func(i, j int))

// DefaultShuffle is an unbiased Fisher-Yates shuffle.
var DefaultShuffle ShuffleFunc = rand.Shuffle

// DrawLottery returns the active members in a uniformly random order and
// reassigns their PayoutPosition to 1..N. The input slice keeps its order.
func DrawLottery(members []*Member, shuffle ShuffleFunc) []*Member {
	if shuffle == nil {
		shuffle = DefaultShuffle
	}
	active := ActiveMembers(members)
	shuffle(len(active), func(i, j int) {
		active[i], active[j] = active[j], active[i]
	})
	for i, m := range active {
		m.PayoutPosition = i + 1
	}
	return active
}
