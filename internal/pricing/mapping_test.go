package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON_PreservesOrder(t *testing.T) {
	m, err := DecodeJSON([]byte(`{"Zeta": "1", "Alpha": "2", "Mid": "3"}`))
	require.NoError(t, err)
	assert.Equal(t, Mapping{
		{Product: "Zeta", Price: "1"},
		{Product: "Alpha", Price: "2"},
		{Product: "Mid", Price: "3"},
	}, m)
}

func TestDecodeJSON_CoercesValues(t *testing.T) {
	m, err := DecodeJSON([]byte(`{"a": 99, "b": 12.5, "c": null, "d": " 7 ", "e": true}`))
	require.NoError(t, err)
	assert.Equal(t, Mapping{
		{Product: "a", Price: "99"},
		{Product: "b", Price: "12.5"},
		{Product: "c", Price: ""},
		{Product: "d", Price: " 7 "},
		{Product: "e", Price: "true"},
	}, m)
}

func TestDecodeJSON_Empty(t *testing.T) {
	for _, in := range []string{"", "  ", "null", "{}"} {
		m, err := DecodeJSON([]byte(in))
		require.NoError(t, err, in)
		assert.Empty(t, m, in)
	}
}

func TestDecodeJSON_RejectsNonObject(t *testing.T) {
	_, err := DecodeJSON([]byte(`["Widget", "99"]`))
	assert.Error(t, err)

	_, err = DecodeJSON([]byte(`{"Widget": {"price": 1}}`))
	assert.Error(t, err)
}

func TestDecodeYAML_PreservesOrder(t *testing.T) {
	src := "Gadget: 5\nWidget: \"99\"\nSprocket: 1.25\nBlank:\n"
	m, err := DecodeYAML([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, Mapping{
		{Product: "Gadget", Price: "5"},
		{Product: "Widget", Price: "99"},
		{Product: "Sprocket", Price: "1.25"},
		{Product: "Blank", Price: ""},
	}, m)
}

func TestDecodeFile_PicksDecoderByExtension(t *testing.T) {
	m, err := DecodeFile("prices.YML", []byte("Widget: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, Mapping{{Product: "Widget", Price: "3"}}, m)

	m, err = DecodeFile("prices.json", []byte(`{"Widget": "4"}`))
	require.NoError(t, err)
	assert.Equal(t, Mapping{{Product: "Widget", Price: "4"}}, m)

	_, err = DecodeFile("prices", []byte("Widget: 3\n"))
	assert.Error(t, err, "extensionless input is parsed as JSON")
}
