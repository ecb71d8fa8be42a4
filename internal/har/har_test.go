package har

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	raw := `{
		"log": {
			"entries": [
				{
					"request": {
						"url": "https://store.example.com/home/portal/v3/get",
						"postData": {"text": "{\"channel\":1}"}
					},
					"response": {"content": {"text": "{\"data\":{}}"}}
				},
				{
					"request": {"url": "https://store.example.com/static/logo.png"},
					"response": {}
				}
			]
		}
	}`

	entries, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "https://store.example.com/home/portal/v3/get", entries[0].RequestURL)
	assert.Equal(t, `{"channel":1}`, entries[0].RequestBody)
	assert.Equal(t, `{"data":{}}`, entries[0].ResponseBody)

	// Optional fields absent on the second entry come back empty, not as
	// errors.
	assert.Equal(t, "https://store.example.com/static/logo.png", entries[1].RequestURL)
	assert.Empty(t, entries[1].RequestBody)
	assert.Empty(t, entries[1].ResponseBody)
}

func TestParseMalformedDocument(t *testing.T) {
	_, err := Parse([]byte(`{"log": {`))
	require.Error(t, err)

	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Error(t, formatErr.Unwrap())
}

func TestParseEmptyLog(t *testing.T) {
	entries, err := Parse([]byte(`{"log": {"entries": []}}`))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
