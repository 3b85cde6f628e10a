package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptInt_Coercion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  OptInt
	}{
		{"number", `42`, OptInt{Value: 42, Valid: true}},
		{"numeric string", `"42"`, OptInt{Value: 42, Valid: true}},
		{"float truncates", `41.9`, OptInt{Value: 41, Valid: true}},
		{"empty string", `""`, OptInt{}},
		{"null", `null`, OptInt{}},
		{"garbage", `"abc"`, OptInt{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got OptInt
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptInt_IntPtr(t *testing.T) {
	assert.Nil(t, OptInt{}.IntPtr())

	p := OptInt{Value: 7, Valid: true}.IntPtr()
	require.NotNil(t, p)
	assert.Equal(t, 7, *p)
}

func TestFlag_Coercion(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"1"`, true},
		{`"0"`, false},
		{`null`, false},
		{`"maybe"`, false},
	}

	for _, tt := range tests {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(tt.input), &f))
		assert.Equal(t, tt.want, f.Bool(), "input %s", tt.input)
	}
}

func TestFilterSet_KeepsOnlyTrueKeys(t *testing.T) {
	var fs FilterSet
	require.NoError(t, json.Unmarshal([]byte(`{"a":true,"b":false,"c":"true","d":1,"e":true}`), &fs))

	assert.Equal(t, `{"a":true,"e":true}`, fs.JSON())
}

func TestFilterSet_Empty(t *testing.T) {
	var fs FilterSet
	require.NoError(t, json.Unmarshal([]byte(`{}`), &fs))
	assert.Equal(t, "{}", fs.JSON())

	require.NoError(t, json.Unmarshal([]byte(`"garbage"`), &fs))
	assert.Equal(t, "{}", fs.JSON())
}

func TestParseCaptureDate(t *testing.T) {
	got := ParseCaptureDate("2024-03-01")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *got)

	got = ParseCaptureDate("2024-03-01T12:30:00Z")
	require.NotNil(t, got)
	assert.Equal(t, 12, got.Hour())

	assert.Nil(t, ParseCaptureDate(""))
	assert.Nil(t, ParseCaptureDate("01/03/2024"))
}

func TestParseTradeTime(t *testing.T) {
	got := ParseTradeTime("2024-03-01T12:30:00Z")
	require.NotNil(t, got)

	assert.Nil(t, ParseTradeTime(""))
	assert.Nil(t, ParseTradeTime("yesterday"))
}
