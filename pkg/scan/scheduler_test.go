package scan

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnfinder/vulnfinder/pkg/cvedb"
)

// bannerListener serves a fixed banner on a loopback port until the test ends.
func bannerListener(t *testing.T, banner string) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if banner != "" {
					_, _ = c.Write([]byte(banner))
				}
				time.Sleep(50 * time.Millisecond)
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port
}

// unusedPort reserves then releases a loopback port so dialing it refuses.
func unusedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out waiting for event stream to close")
		}
	}
}

func TestScheduler_AllTasksExactlyOnce(t *testing.T) {
	openPort := bannerListener(t, "SSH-2.0-OpenSSH_8.5p1\r\n")
	closedPort := unusedPort(t)

	for _, concurrency := range []int{1, 3, 16} {
		t.Run("concurrency "+strconv.Itoa(concurrency), func(t *testing.T) {
			sched := NewScheduler(Options{
				Hosts:           []string{"127.0.0.1"},
				Ports:           []int{openPort, closedPort},
				Timeout:         2 * time.Second,
				Concurrency:     concurrency,
				CollectEvidence: true,
			})

			events := collect(t, sched.Run(context.Background()))

			seen := make(map[string]int)
			var finished *Event
			for i := range events {
				ev := events[i]
				switch ev.Kind {
				case EventProbeCompleted:
					key := ev.Outcome.Host + ":" + strconv.Itoa(ev.Outcome.Port)
					seen[key]++
				case EventScanFinished:
					finished = &events[i]
				}
			}

			require.Len(t, seen, 2)
			for key, n := range seen {
				assert.Equal(t, 1, n, "task %s ran %d times", key, n)
			}

			require.NotNil(t, finished, "stream must end with ScanFinished")
			assert.Equal(t, EventScanFinished, events[len(events)-1].Kind)
			require.NotNil(t, finished.Report)
			assert.NotEmpty(t, finished.Report.RunID)
			assert.Equal(t, 2, finished.Report.Counters.Completed)
			assert.Equal(t, 1, finished.Report.Counters.Open)
		})
	}
}

func TestScheduler_ClampsConcurrency(t *testing.T) {
	sched := NewScheduler(Options{Concurrency: 0})
	assert.Equal(t, 1, sched.opts.Concurrency)

	sched = NewScheduler(Options{Concurrency: -5})
	assert.Equal(t, 1, sched.opts.Concurrency)
}

func TestScheduler_MatchesOpenService(t *testing.T) {
	openPort := bannerListener(t, "SSH-2.0-OpenSSH_8.5p1\r\n")

	db := loadTestDB(t, `[
	  {"product": "OpenSSH", "version_range": ">=8.0.0,<8.9.0", "cve_id": "CVE-2021-41617", "cvss": 7.0}
	]`)

	sched := NewScheduler(Options{
		Hosts:           []string{"127.0.0.1"},
		Ports:           []int{openPort},
		Timeout:         2 * time.Second,
		Concurrency:     2,
		CollectEvidence: true,
		Matcher:         db,
	})

	events := collect(t, sched.Run(context.Background()))

	var matches []*MatchResult
	for _, ev := range events {
		if ev.Kind == EventMatchFound {
			matches = append(matches, ev.Match)
		}
	}
	require.Len(t, matches, 1)
	assert.Equal(t, "CVE-2021-41617", matches[0].Match.CVEID)
	assert.Equal(t, "OpenSSH", matches[0].Fingerprint.Product)
	assert.Equal(t, "8.5.1", matches[0].Fingerprint.Version)

	final := events[len(events)-1]
	require.Equal(t, EventScanFinished, final.Kind)
	assert.Equal(t, 1, final.Report.Counters.Matches)
}

func TestScheduler_CancellationStopsIssuance(t *testing.T) {
	sched := NewScheduler(Options{
		// 192.0.2.0/24 is TEST-NET-1; connects time out rather than refuse.
		Hosts:       []string{"192.0.2.1"},
		Ports:       []int{80, 81, 82, 83, 84, 85},
		Timeout:     500 * time.Millisecond,
		Concurrency: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	stream := sched.Run(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()

	events := collect(t, stream)
	require.NotEmpty(t, events)
	final := events[len(events)-1]
	assert.Equal(t, EventScanFinished, final.Kind, "ScanFinished is emitted even when canceled")

	completed := final.Report.Counters.Completed
	assert.Less(t, completed, 6, "cancellation must stop issuing new tasks")
}

func TestScheduler_CountersMonotonic(t *testing.T) {
	openPort := bannerListener(t, "hello\r\n")
	closedPort := unusedPort(t)

	sched := NewScheduler(Options{
		Hosts:           []string{"127.0.0.1"},
		Ports:           []int{openPort, closedPort},
		Timeout:         2 * time.Second,
		Concurrency:     2,
		CollectEvidence: true,
	})

	var prev Counters
	for ev := range sched.Run(context.Background()) {
		c := ev.Counters
		assert.GreaterOrEqual(t, c.Completed, prev.Completed)
		assert.GreaterOrEqual(t, c.Open, prev.Open)
		assert.GreaterOrEqual(t, c.Matches, prev.Matches)
		assert.GreaterOrEqual(t, c.Errors, prev.Errors)
		assert.LessOrEqual(t, c.Completed, c.TotalTasks)
		prev = c
	}
}

func loadTestDB(t *testing.T, content string) *cvedb.Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cve_db.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	db, err := cvedb.Load(path)
	require.NoError(t, err)
	return db
}
