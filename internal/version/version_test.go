package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.True(t, strings.HasPrefix(info, "stagehand "))
	assert.Contains(t, info, Version)
}
