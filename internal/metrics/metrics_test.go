package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	// increments should not panic
	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/bookings", "200")
		IncConflict()
		IncAuditDropped()
	})
}
