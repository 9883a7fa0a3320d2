package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	b := Current()
	assert.Equal(t, Version, b.Version)
	assert.Equal(t, BuildDate, b.BuildDate)
	assert.NotEmpty(t, b.Commit)
}

func TestStringAndUserAgent(t *testing.T) {
	old := Version
	Version = "1.2.3"
	defer func() { Version = old }()

	assert.Contains(t, String(), "1.2.3 (commit ")
	assert.Equal(t, "billparse/1.2.3", UserAgent())
}
