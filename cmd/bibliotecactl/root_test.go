package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, s := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(s)
		assert.Error(t, err, s)
	}
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"sweep", "recalc", "process-queue", "promote"}, names)

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

// 参数校验在连接数据库之前完成
func TestRootCmd_ArgsValidation(t *testing.T) {
	tests := [][]string{
		{"process-queue"},
		{"promote"},
		{"sweep", "extra"},
		{"recalc", "--book", "abc"},
	}
	for _, args := range tests {
		root := newRootCmd()
		root.SetArgs(args)
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		assert.Error(t, root.Execute(), args)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"promoted": 2}))
	assert.JSONEq(t, `{"promoted":2}`, buf.String())
}
