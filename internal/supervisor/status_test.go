package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsvpn/client/internal/config"
	"github.com/wsvpn/client/internal/session"
)

func TestReadStatusWithNoSnapshotReturnsNil(t *testing.T) {
	snap, err := ReadStatus(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRunStatusWriterWritesThenCleansUp(t *testing.T) {
	dir := t.TempDir()
	sess := session.New(&config.ClientConfig{ServerURL: "wss://example.test", AuthToken: "t"})
	sess.RecordInbound(10)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = runStatusWriter(ctx, dir, sess)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, statusFile))
		return err == nil
	}, time.Second, 5*time.Millisecond)

	snap, err := ReadStatus(dir)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(10), snap.BytesIn)

	<-done
	_, err = os.Stat(filepath.Join(dir, statusFile))
	assert.True(t, os.IsNotExist(err))
}
