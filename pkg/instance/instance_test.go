package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDIsStable(t *testing.T) {
	first := GetID()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, GetID())
}
