package cells

import "sync/atomic"

// randNonce hands ids.NewCellID a value that changes on every call
// within this process, so two cells created in the same nanosecond
// still hash to distinct ids.
var nonceCounter uint64

func randNonce() int64 {
	return int64(atomic.AddUint64(&nonceCounter, 1))
}
