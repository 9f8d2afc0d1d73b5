package builtin

import (
	"context"
	"time"

	"github.com/oakmund/hearth/internal/capability"
)

// Clock returns the current-time capability.
//
// now is injectable for tests; pass time.Now in production.
func Clock(now func() time.Time) capability.Capability {
	if now == nil {
		now = time.Now
	}
	return capability.Capability{
		Definition: definition(
			"get_current_time",
			"Get the current date and time",
			objectSchema(map[string]any{}),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			return now().Format("It is 3:04 PM on Monday, January 2, 2006"), nil
		},
	}
}
