package orders

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// orderNumberPrefix is the human-facing reference prefix.
const orderNumberPrefix = "EG"

// newOrderNumber builds a reference like EG-1717171717171-042. The
// millisecond timestamp plus random suffix keeps collisions out of
// reach of the unique index under normal traffic.
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("%s-%d-%03d", orderNumberPrefix, now.UnixMilli(), rand.IntN(1000))
}
