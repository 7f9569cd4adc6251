package main

import (
	"crypto/md5"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunChecksum_PrintsSHA1AndMD5OfControlFile(t *testing.T) {
	content := []byte(`[{"name": "a", "type": "process"}]`)
	path := filepath.Join(t.TempDir(), "sentineld.conf")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	out := captureStdout(t, func() { runChecksum(path) })

	assert.Contains(t, out, fmt.Sprintf("%x", sha1.Sum(content)))
	assert.Contains(t, out, fmt.Sprintf("%x", md5.Sum(content)))
}
