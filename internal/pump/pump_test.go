package pump

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"golang.org/x/sys/unix"
)

func TestIsWouldBlockMatchesEAGAINAndEWOULDBLOCK(t *testing.T) {
	assert.True(t, isWouldBlock(unix.EAGAIN))
	assert.True(t, isWouldBlock(unix.EWOULDBLOCK))
	assert.True(t, isWouldBlock(&os.PathError{Op: "read", Err: unix.EAGAIN}))
	assert.False(t, isWouldBlock(errors.New("boom")))
}
