package attempt

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// keyLock serializes attempt processing per (user, exercise) pair using a
// fixed set of striped mutexes. Two submissions for the same pair always
// hash to the same stripe; unrelated pairs rarely contend.
type keyLock struct {
	stripes []sync.Mutex
}

func newKeyLock(stripeCount int) *keyLock {
	if stripeCount <= 0 {
		stripeCount = 64
	}
	return &keyLock{
		stripes: make([]sync.Mutex, stripeCount),
	}
}

// lock acquires the stripe for the pair and returns the unlock function.
func (l *keyLock) lock(userID uuid.UUID, exercise string) func() {
	h := fnv.New32a()
	h.Write(userID[:])
	h.Write([]byte(exercise))
	stripe := &l.stripes[h.Sum32()%uint32(len(l.stripes))]

	stripe.Lock()
	return stripe.Unlock
}
