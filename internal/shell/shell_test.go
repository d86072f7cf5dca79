package shell

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekv/internal/config"
	"tablekv/internal/db"
)

func newTestShell(t *testing.T) *Shell {
	t.Helper()
	conf := config.New(filepath.Join(t.TempDir(), "kvstore"))
	database, err := db.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database, strings.NewReader(""), &bytes.Buffer{})
}

func TestNamespaceWorkflow(t *testing.T) {
	s := newTestShell(t)

	assert.Equal(t, "[OK] Namespace 'prod' created.", s.Execute("create-namespace prod"))
	assert.Equal(t, "[ERROR] Namespace already exists.", s.Execute("create-namespace prod"))
	assert.Equal(t, "[OK] Using namespace: prod", s.Execute("use-namespace prod"))
	assert.Equal(t, "[ERROR] Namespace not found.", s.Execute("use-namespace staging"))
	assert.Equal(t, "prod", s.Execute("list-namespaces"))
}

func TestTableWorkflow(t *testing.T) {
	s := newTestShell(t)

	// A table command before use-namespace is an error, not a crash.
	assert.Equal(t, "[ERROR] No namespace selected.", s.Execute("create-table users"))

	s.Execute("create-namespace prod")
	s.Execute("use-namespace prod")

	assert.Equal(t, "[OK] Table 'users' created.", s.Execute("create-table users"))
	assert.Equal(t, "[ERROR] Table already exists.", s.Execute("create-table users"))
	s.Execute("create-table events")
	assert.Equal(t, "events\nusers", s.Execute("list-tables"))
}

func TestKeyWorkflow(t *testing.T) {
	s := newTestShell(t)
	s.Execute("create-namespace prod")
	s.Execute("use-namespace prod")
	s.Execute("create-table users")

	assert.Equal(t, "[OK] Set 'alice' in table 'users'.", s.Execute("set users:alice:admin"))
	assert.Equal(t, "admin", s.Execute("get users:alice"))

	// Values keep their colons.
	s.Execute("set users:url:https://example.com")
	assert.Equal(t, "https://example.com", s.Execute("get users:url"))

	assert.Equal(t, "[OK] Marked key 'alice' as deleted in table 'users'.", s.Execute("del users:alice"))
	assert.Equal(t, "[ERROR] Key not found.", s.Execute("get users:alice"))
	assert.Equal(t, "[ERROR] Key not found.", s.Execute("get users:ghost"))
	assert.Equal(t, "[ERROR] Table not found.", s.Execute("get nope:k"))
}

func TestFlushAndCompactCommands(t *testing.T) {
	s := newTestShell(t)
	s.Execute("create-namespace prod")
	s.Execute("use-namespace prod")
	s.Execute("create-table users")
	s.Execute("set users:k:v1")

	assert.Equal(t, "[OK] Flushed table 'users'.", s.Execute("flush users"))
	s.Execute("set users:k:v2")
	s.Execute("flush users")
	assert.Equal(t, "[OK] Compacted table 'users'.", s.Execute("compact users"))
	assert.Equal(t, "v2", s.Execute("get users:k"))

	assert.Equal(t, "[ERROR] Table not found.", s.Execute("flush nope"))
}

func TestInvalidTTL(t *testing.T) {
	s := newTestShell(t)
	s.Execute("create-namespace prod")
	s.Execute("use-namespace prod")
	s.Execute("create-table users")

	assert.Equal(t, "[ERROR] Invalid ttl.", s.Execute("set users:k:v abc"))
	assert.Equal(t, "[ERROR] Invalid ttl.", s.Execute("set users:k:v 0"))
	assert.Equal(t, "[ERROR] Invalid ttl.", s.Execute("set users:k:v -5"))
	assert.Equal(t, "[OK] Set 'k' in table 'users'.", s.Execute("set users:k:v 60"))
}

func TestUsageAndUnknownCommands(t *testing.T) {
	s := newTestShell(t)

	assert.Contains(t, s.Execute("bogus"), "Unknown command")
	assert.Contains(t, s.Execute("set"), "Usage:")
	assert.Contains(t, s.Execute("get a b c"), "Usage:")
	assert.Contains(t, s.Execute("get malformed"), "[ERROR]")
	assert.Contains(t, s.Execute("help"), "create-namespace")
}

func TestRunSurvivesLongInputLines(t *testing.T) {
	conf := config.New(filepath.Join(t.TempDir(), "kvstore"))
	database, err := db.Open(conf)
	require.NoError(t, err)
	defer database.Close()

	// Well past the scanner's default 64KiB token limit.
	longValue := strings.Repeat("a", 128*1024)
	input := strings.Join([]string{
		"create-namespace prod",
		"use-namespace prod",
		"create-table blobs",
		"set blobs:big:" + longValue,
		"get blobs:big",
		"exit",
	}, "\n")

	var out bytes.Buffer
	s := New(database, strings.NewReader(input), &out)
	require.NoError(t, s.Run())
	assert.Contains(t, out.String(), longValue)
}

func TestRunLoopNeverDiesOnErrors(t *testing.T) {
	conf := config.New(filepath.Join(t.TempDir(), "kvstore"))
	database, err := db.Open(conf)
	require.NoError(t, err)
	defer database.Close()

	input := strings.Join([]string{
		"get nowhere:k",
		"create-namespace prod",
		"use-namespace prod",
		"create-table users",
		"set users:k:v",
		"get users:k",
		"exit",
	}, "\n")

	var out bytes.Buffer
	s := New(database, strings.NewReader(input), &out)
	require.NoError(t, s.Run())

	output := out.String()
	assert.Contains(t, output, "[ERROR]")
	assert.Contains(t, output, "[OK] Namespace 'prod' created.")
	assert.Contains(t, output, "v")
}
