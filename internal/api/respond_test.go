package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginatedEnvelope(t *testing.T) {
	p := pageParams{Page: 2, PerPage: 10}
	body := paginated([]string{"a", "b", "c"}, p, 23, 3)

	assert.Equal(t, 2, body["current_page"])
	assert.Equal(t, 3, body["last_page"])
	assert.Equal(t, 10, body["per_page"])
	assert.Equal(t, 23, body["total"])

	from := body["from"].(*int)
	to := body["to"].(*int)
	require.NotNil(t, from)
	require.NotNil(t, to)
	assert.Equal(t, 11, *from)
	assert.Equal(t, 13, *to)
}

func TestPaginatedEmptyPage(t *testing.T) {
	p := pageParams{Page: 1, PerPage: 15}
	body := paginated([]string{}, p, 0, 0)

	assert.Equal(t, 1, body["last_page"])
	assert.Equal(t, 0, body["total"])
	assert.Nil(t, body["from"].(*int))
	assert.Nil(t, body["to"].(*int))
}

func TestPageParamsOffsets(t *testing.T) {
	p := pageParams{Page: 3, PerPage: 25}
	assert.Equal(t, 25, p.limit())
	assert.Equal(t, 50, p.offset())
}
