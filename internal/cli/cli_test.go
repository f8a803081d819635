// File: internal/cli/cli_test.go (complete file)

package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/ipcodec"
)

func runCLI(args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_VersionAndHelp(t *testing.T) {
	code, out, _ := runCLI("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "connscope dev")

	code, out, _ = runCLI("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "connscope history")

	code, _, errOut := runCLI("bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command: bogus")
}

func TestHistory_EmptyListAndErrors(t *testing.T) {
	dir := t.TempDir()

	code, out, _ := runCLI("history", "list", "-data-dir", dir)
	require.Equal(t, 0, code)
	assert.Equal(t, "No history yet.\n", out)

	code, out, _ = runCLI("history", "-data-dir", dir, "-format", "json")
	require.Equal(t, 0, code)
	var entries []any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Empty(t, entries)

	code, _, errOut := runCLI("history", "fav", "-data-dir", dir, "7")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no entry #7")

	code, _, _ = runCLI("history", "fav", "-data-dir", dir, "x")
	assert.Equal(t, 2, code)

	code, _, errOut = runCLI("history", "show", "-data-dir", dir, "!!!")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "share token")

	code, _, _ = runCLI("history", "purge", "-data-dir", dir)
	assert.Equal(t, 2, code)
}

func TestHistory_ShowUnknownToken(t *testing.T) {
	dir := t.TempDir()
	repr := conninfo.Repr{
		Info:      conninfo.Snapshot{ASNumber: 13335, ASOrgName: "Cloudflare"},
		Addresses: ipcodec.Set{V4: []uint32{16843009}},
	}
	link := "https://example.com/" + conninfo.ShareFragment(repr)

	code, out, _ := runCLI("history", "show", "-data-dir", dir, link)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Not in history.\n")
	assert.Contains(t, out, "Discovered: 1.1.1.1\n")
	assert.Contains(t, out, "Network: Cloudflare (AS13335)\n")
}

func TestRun_BadConfig(t *testing.T) {
	code, _, errOut := runCLI("watch", "-origin", "ftp://nope", "-data-dir", t.TempDir())
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "config:")
}
