package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCommand_RegistersExpectedSubcommands(t *testing.T) {
	root := newRootCommand()

	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["start"])
	assert.True(t, names["validate-rules"])
	assert.True(t, names["version"])
}

func TestNewRootCommand_DefaultFlags(t *testing.T) {
	root := newRootCommand()

	configFlag := root.PersistentFlags().Lookup("config")
	assert.NotNil(t, configFlag)
	assert.Equal(t, "config.json", configFlag.DefValue)

	addrFlag := root.PersistentFlags().Lookup("diagnostics-addr")
	assert.NotNil(t, addrFlag)
	assert.Equal(t, ":8090", addrFlag.DefValue)
}
