package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScript(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		args    []string
		want    string
		wantErr bool
	}{
		{"flag only", "app.lua", nil, "app.lua", false},
		{"nothing", "", nil, "", false},
		{"lua magic", "", []string{"site/app.lua"}, "site/app.lua", false},
		{"ws magic", "", []string{"index.ws"}, "index.ws", false},
		{"flag wins", "flag.lua", []string{"arg.lua"}, "flag.lua", false},
		{"foreign target", "", []string{"app.py"}, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveScript(tc.flag, tc.args)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSchemaCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"schema"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Contains(t, decoded["properties"], "script")
}

func TestServeCommand_RejectsForeignTarget(t *testing.T) {
	rootCmd.SetArgs([]string{"serve", "app.py"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.py")
}
