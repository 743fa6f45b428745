package eventhub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaguard/backend/internal/models"
)

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent(`{"id":"e1","type":"user.blocked","subject":"0x1111111111111111111111111111111111111111","violation_count":3}`)
	require.NoError(t, err)
	assert.Equal(t, models.EventUserBlocked, ev.Type)
	assert.Equal(t, uint(3), ev.Count)

	_, err = decodeEvent(`{"id":"e2"}`)
	assert.Error(t, err)

	_, err = decodeEvent(`not json`)
	assert.Error(t, err)
}
