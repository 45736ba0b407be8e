package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	file, err := Open("file", filepath.Join(dir, "nested", "options.json"))
	require.NoError(t, err)
	db, err := Open("sqlite", filepath.Join(dir, "options.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{"file": file, "sqlite": db}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			doc, err := s.Get(ctx)
			require.NoError(t, err)
			assert.JSONEq(t, `{}`, string(doc))

			err = s.Set(ctx, map[string]json.RawMessage{
				"blockRE1":  json.RawMessage(`"^https://example\\.com"`),
				"timedata1": json.RawMessage(`[1700000000,10,0,0,0]`),
				"days1":     json.RawMessage(`[false,true,true,true,true,true,false]`),
			})
			require.NoError(t, err)

			err = s.Set(ctx, map[string]json.RawMessage{
				"timedata1": json.RawMessage(`[1700000000,25.5,0,0,0]`),
			})
			require.NoError(t, err)

			doc, err = s.Get(ctx)
			require.NoError(t, err)
			parsed := gjson.ParseBytes(doc)
			assert.Equal(t, `^https://example\.com`, parsed.Get("blockRE1").String())
			assert.Equal(t, 25.5, parsed.Get("timedata1.1").Float())
			assert.True(t, parsed.Get("days1.1").Bool())
		})
	}
}

func TestStore_RejectsInvalidJSON(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	err = s.Set(ctx, map[string]json.RawMessage{"blockRE1": json.RawMessage(`not json`)})
	assert.Error(t, err)
}

func TestSQLiteStore_BareStringRows(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO options (key, value) VALUES ('setName1', 'Social')`)
	require.NoError(t, err)

	doc, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Social", gjson.GetBytes(doc, "setName1").String())
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2,3]"), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.Get(context.Background())
	assert.Error(t, err)
}

func TestFileStore_Canceled(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "options.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("redis", "localhost")
	assert.Error(t, err)
}

func TestEscapeKey(t *testing.T) {
	assert.Equal(t, "timedata1", escapeKey("timedata1"))
	assert.Equal(t, `a\.b\*`, escapeKey("a.b*"))
}
