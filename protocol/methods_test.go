package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowRequestsKeepRawValues(t *testing.T) {
	var request GetRowRequest
	requestString := `{ "table": "accounts", "key": [9007199254740993, "a"] }`

	require.NoError(t, json.Unmarshal([]byte(requestString), &request))
	require.Equal(t, "accounts", request.Table)
	// large integers must survive until the table decodes them
	require.JSONEq(t, `[9007199254740993, "a"]`, string(request.Key))

	var write WriteRowRequest
	require.NoError(t, json.Unmarshal([]byte(`{ "table": "t" }`), &write))
	require.Nil(t, write.Row)
}
