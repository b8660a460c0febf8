package supervisor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/wsvpn/client/internal/session"
)

const statusFile = "status.json"

// StatusSnapshot is what `status` reads back from disk; there is no running
// process for it to query directly in this client's single-process design,
// so the Supervisor periodically writes its own status out for the CLI to
// pick up, the way a long-lived daemon would answer a status RPC.
type StatusSnapshot struct {
	Status     string `json:"status"`
	UptimeSecs int64  `json:"uptime_secs"`
	PacketsIn  int64  `json:"packets_in"`
	PacketsOut int64  `json:"packets_out"`
	BytesIn    int64  `json:"bytes_in"`
	BytesOut   int64  `json:"bytes_out"`
	UpdatedAt  int64  `json:"updated_at"`
}

// ReadStatus reads the last snapshot a running Supervisor wrote to stateDir,
// or (nil, nil) if none exists (no tunnel has run yet).
func ReadStatus(stateDir string) (*StatusSnapshot, error) {
	b, err := os.ReadFile(filepath.Join(stateDir, statusFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var s StatusSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// runStatusWriter periodically writes a StatusSnapshot to stateDir until ctx
// is done, and removes it on the way out so a stale file doesn't outlive the
// process that wrote it.
func runStatusWriter(ctx context.Context, stateDir string, sess *session.Client) error {
	path := filepath.Join(stateDir, statusFile)
	started := time.Now()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	defer os.Remove(path)

	write := func() {
		stats := sess.StatsSnapshot()
		snap := StatusSnapshot{
			Status:     sess.Status().String(),
			UptimeSecs: int64(time.Since(started).Seconds()),
			PacketsIn:  stats.PacketsIn,
			PacketsOut: stats.PacketsOut,
			BytesIn:    stats.BytesIn,
			BytesOut:   stats.BytesOut,
			UpdatedAt:  time.Now().Unix(),
		}
		if b, err := json.Marshal(snap); err == nil {
			_ = os.WriteFile(path, b, 0o600)
		}
	}

	write()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			write()
		}
	}
}
