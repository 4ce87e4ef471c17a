package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadArgs(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "args.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"code":"from-file"}`), 0o600))

	tests := []struct {
		name       string
		stdin      string
		positional []string
		file       string
		want       string
		wantErr    string
	}{
		{name: "none", want: ""},
		{name: "inline", positional: []string{`{"code":"1"}`}, want: `{"code":"1"}`},
		{name: "file", file: file, want: `{"code":"from-file"}`},
		{name: "stdin", stdin: `{"code":"piped"}`, file: "-", want: `{"code":"piped"}`},
		{name: "blank stdin", stdin: "  \n", file: "-", want: ""},
		{name: "both", positional: []string{`{}`}, file: file, wantErr: "not both"},
		{name: "invalid", positional: []string{`{code}`}, wantErr: "not valid JSON"},
		{name: "missing file", file: filepath.Join(dir, "nope.json"), wantErr: "no such file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := readArgs(strings.NewReader(tt.stdin), tt.positional, tt.file)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(raw))
		})
	}
}

func TestHashTokenCommand(t *testing.T) {
	var out strings.Builder
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"hash-token", "abc"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "$2a$"), out.String())
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Runs a query.", firstLine("Runs a query.\nMore detail."))
	assert.Equal(t, "", firstLine(""))
}
