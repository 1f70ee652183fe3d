package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalJSONRoundTrip(t *testing.T) {
	type payload struct {
		Name Optional[string] `json:"name"`
	}

	out, err := json.Marshal(payload{Name: Some("ada")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ada"}`, string(out))

	out, err = json.Marshal(payload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":null}`, string(out))

	var in payload
	require.NoError(t, json.Unmarshal([]byte(`{"name":"lovelace"}`), &in))
	assert.True(t, in.Name.IsSet)
	assert.Equal(t, "lovelace", in.Name.Val)

	in = payload{}
	require.NoError(t, json.Unmarshal([]byte(`{"name":null}`), &in))
	assert.False(t, in.Name.IsSet)
}

func TestOptionalPtr(t *testing.T) {
	assert.Nil(t, None[int64]().Ptr())

	p := Some(int64(7)).Ptr()
	require.NotNil(t, p)
	assert.Equal(t, int64(7), *p)

	assert.False(t, FromPtr[int]((*int)(nil)).IsSet)
	v := 3
	assert.Equal(t, Some(3), FromPtr(&v))
}

func TestOptionalUnwrapOr(t *testing.T) {
	assert.Equal(t, 5, Some(5).UnwrapOr(9))
	assert.Equal(t, 9, None[int]().UnwrapOr(9))
}
