package envelope

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBody(t *testing.T, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecode_RoundTrip(t *testing.T) {
	body := []byte(`{
		"trace_id": "t-1",
		"user_id": "u-1",
		"username": "ash",
		"location": {"latitude": 49.2, "longitude": -123.1},
		"pokemonUpdates": [
			{"instance_id": "i-1", "pokemon_id": 25, "cp": "1500", "shiny": "true", "last_update": 10}
		],
		"tradeUpdates": [
			{"key": "k-1", "tradeData": {"trade_id": "tr-1", "username_proposed": "ash"}}
		]
	}`)

	b, err := Decode(gzipBody(t, body))
	require.NoError(t, err)

	assert.Equal(t, "t-1", b.TraceID)
	assert.Equal(t, "u-1", b.UserID)
	assert.Equal(t, "ash", b.Username)
	require.NotNil(t, b.Location)
	assert.Equal(t, 49.2, *b.Location.Latitude)

	require.Len(t, b.Pokemon, 1)
	pu := b.Pokemon[0]
	assert.Equal(t, "i-1", pu.InstanceID)
	assert.Equal(t, int64(25), pu.PokemonID.Value)
	assert.Equal(t, int64(1500), pu.CP.Value, "numeric string should coerce")
	assert.True(t, pu.Shiny.Bool(), "string boolean should coerce")
	assert.Equal(t, int64(10), pu.LastUpdate.Int64Or(0))

	require.Len(t, b.Trades, 1)
	assert.Equal(t, "tr-1", b.Trades[0].Data.TradeID)

	assert.Equal(t, body, b.Raw, "Raw must hold the decompressed body verbatim")
}

func TestDecode_NotGzip(t *testing.T) {
	_, err := Decode([]byte(`{"user_id":"u-1"}`))
	require.Error(t, err)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "decompress", de.Stage)
}

func TestDecodeJSON_MalformedJSON(t *testing.T) {
	_, err := DecodeJSON([]byte(`{not json`))

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "unmarshal", de.Stage)
}

func TestDecodeJSON_MissingUserID(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"username":"ash"}`))

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "validate", de.Stage)
}

func TestDecodeJSON_AssignsTraceID(t *testing.T) {
	b, err := DecodeJSON([]byte(`{"user_id":"u-1","username":"ash"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, b.TraceID, "missing trace_id should be generated")
}

func TestDecodeJSON_CoercionNeverFails(t *testing.T) {
	// Garbage in every coercible field must still decode.
	b, err := DecodeJSON([]byte(`{
		"user_id": "u-1",
		"pokemonUpdates": [{
			"instance_id": "i-1",
			"pokemon_id": "not-a-number",
			"cp": null,
			"attack_iv": "",
			"weight": "heavy",
			"shiny": "yes?",
			"not_trade_list": "not-an-object",
			"date_caught": "someday"
		}]
	}`))
	require.NoError(t, err)

	pu := b.Pokemon[0]
	assert.False(t, pu.PokemonID.Valid)
	assert.False(t, pu.CP.Valid)
	assert.False(t, pu.AttackIV.Valid)
	assert.False(t, pu.Weight.Valid)
	assert.False(t, pu.Shiny.Bool())
	assert.Equal(t, "{}", pu.NotTradeList.JSON())
}
