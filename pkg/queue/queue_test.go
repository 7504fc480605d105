package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueForPriority(t *testing.T) {
	assert.Equal(t, "default", queueForPriority(PriorityDefault))
	assert.Equal(t, "critical", queueForPriority(PriorityCritical))
	assert.Equal(t, "low", queueForPriority(PriorityLow))

	// Unknown priorities fall back to the default queue.
	assert.Equal(t, "default", queueForPriority(42))
	assert.Equal(t, "default", queueForPriority(-1))
}
