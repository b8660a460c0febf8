package logging_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsvpn/client/internal/logging"
)

func TestFormatOrdersFieldsAndAppendsNewline(t *testing.T) {
	f := logging.NewFormatter("2006-01-02T15:04:05")
	entry := &logrus.Entry{
		Time:    time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
		Message: "session active",
		Data:    logrus.Fields{"node": "us-east", "attempt": 2},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-31T12:00:00 session active attempt=2 node=us-east\n", string(out))
}
