package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	claserr "github.com/Hardikdarji921/esp32-datalogger/errors"
)

func TestNewKVUserStoreNilClient(t *testing.T) {
	store, err := NewKVUserStore(nil, "users")
	require.Error(t, err)
	assert.Nil(t, store)
	assert.True(t, claserr.IsInvalid(err))
}
