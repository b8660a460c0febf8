package errcat_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wsvpn/client/internal/errcat"
)

func TestCategoryRoundTrip(t *testing.T) {
	err := errcat.Auth.New("token rejected")
	assert.Equal(t, errcat.Auth, errcat.GetCategory(err))
	assert.Equal(t, 3, errcat.Auth.ExitCode())
}

func TestGetCategoryUnwraps(t *testing.T) {
	base := errcat.Permission.New("cannot open tun")
	wrapped := fmt.Errorf("setup failed: %w", base)
	assert.Equal(t, errcat.Permission, errcat.GetCategory(wrapped))
}

func TestGetCategoryDefaultsToUnknown(t *testing.T) {
	assert.Equal(t, errcat.Unknown, errcat.GetCategory(errors.New("plain")))
	assert.Equal(t, errcat.OK, errcat.GetCategory(nil))
}

func TestExitCodes(t *testing.T) {
	cases := map[errcat.Category]int{
		errcat.OK:          0,
		errcat.User:        1,
		errcat.Permission:  2,
		errcat.Auth:        3,
		errcat.Unreachable: 4,
		errcat.Unknown:     1,
	}
	for cat, want := range cases {
		assert.Equal(t, want, cat.ExitCode())
	}
}
