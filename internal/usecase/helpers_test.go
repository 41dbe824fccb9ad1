package usecase

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// mustField returns the raw JSON of one top-level field of doc.
func mustField(t *testing.T, doc []byte, field string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc, &m))
	raw, ok := m[field]
	require.True(t, ok, "field %s missing in %s", field, doc)
	return string(raw)
}

func mustInt(t *testing.T, s string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return n
}
