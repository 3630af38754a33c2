package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMainWiring(t *testing.T) {
	origSetVersion := setVersionInfo
	origExecute := executeCmd
	t.Cleanup(func() {
		setVersionInfo = origSetVersion
		executeCmd = origExecute
	})

	var order []string
	setVersionInfo = func(v, c, d string) {
		order = append(order, "version")
		assert.Equal(t, version, v)
		assert.Equal(t, commit, c)
		assert.Equal(t, date, d)
	}
	executeCmd = func() {
		order = append(order, "execute")
	}

	main()

	assert.Equal(t, []string{"version", "execute"}, order)
}
