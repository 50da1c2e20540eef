// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// Result is the captured outcome of one command execution.
type Result struct {
	Out    string
	ErrOut string
	Err    error
}

// Execute runs cmd with args and captures its output.
func Execute(ctx context.Context, cmd *cobra.Command, args ...string) Result {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return Result{Out: out.String(), ErrOut: errOut.String(), Err: err}
}

// StatePath returns a state database path inside a fresh temp directory.
// The directory holding the database does not exist yet.
func StatePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".leapboard", "state.db")
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// CreatedID extracts the dashboard id from the create command's output.
func CreatedID(t *testing.T, out string) string {
	t.Helper()
	const prefix = "Created dashboard "
	i := strings.Index(out, prefix)
	if i < 0 {
		t.Fatalf("no created dashboard in output: %q", out)
	}
	rest := out[i+len(prefix):]
	if j := strings.IndexByte(rest, ' '); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
