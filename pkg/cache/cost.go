package cache

import (
	"math"
	"sync/atomic"

	"github.com/ccoveille/go-safecast/v2"
)

// costCounter sums the cost of entries written, for engines that do not
// track it.
type costCounter struct {
	total atomic.Uint64
}

func (cc *costCounter) add(cost int64) {
	uintCost, err := safecast.Convert[uint64](cost)
	if err != nil {
		// Negative costs are meaningless; count them as the largest cost so
		// they stand out.
		uintCost = math.MaxUint32
	}
	cc.total.Add(uintCost)
}

func (cc *costCounter) load() uint64 { return cc.total.Load() }
