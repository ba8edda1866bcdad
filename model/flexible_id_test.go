package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleIDAcceptedShapes(t *testing.T) {
	for _, raw := range []string{`3`, `"3"`, `{"id":3}`, `{"id":"3"}`} {
		var got struct {
			CollegeID FlexibleID `json:"college_id"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"college_id":`+raw+`}`), &got), raw)
		assert.Equal(t, FlexibleID(3), got.CollegeID, raw)
	}
}

func TestFlexibleIDAbsentAndNull(t *testing.T) {
	var got struct {
		YearID FlexibleID `json:"year_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"year_id":null}`), &got))
	assert.Zero(t, got.YearID)
	assert.Nil(t, got.YearID.Ptr())
}

func TestFlexibleIDRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`"abc"`, `-1`, `{"name":"x"}`, `{"id":{"id":3}}`, `1.5`} {
		var f FlexibleID
		assert.ErrorIs(t, f.UnmarshalJSON([]byte(raw)), ErrInvalidID, raw)
	}
}

func TestParseFlexibleID(t *testing.T) {
	id, err := ParseFlexibleID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, FlexibleID(42), id)

	id, err = ParseFlexibleID(`{"id":"9"}`)
	require.NoError(t, err)
	assert.Equal(t, FlexibleID(9), id)

	id, err = ParseFlexibleID("")
	require.NoError(t, err)
	assert.Zero(t, id)

	_, err = ParseFlexibleID("x1")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestFlexibleIDMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		A FlexibleID `json:"a"`
		B FlexibleID `json:"b"`
	}{A: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":7,"b":null}`, string(out))
}
