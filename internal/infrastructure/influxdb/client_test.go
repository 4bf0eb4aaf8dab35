package influxdb

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/config"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
}

func newFakeClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writeAPI: w, connected: true}, w
}

func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Nanosecond)
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}
	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:1"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_LiveServer(t *testing.T) {
	url := os.Getenv("GRAYLIGHTS_TEST_INFLUXDB_URL")
	if url == "" {
		t.Skip("GRAYLIGHTS_TEST_INFLUXDB_URL not set")
	}
	client, err := Connect(config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         os.Getenv("GRAYLIGHTS_TEST_INFLUXDB_TOKEN"),
		Org:           "graylights",
		Bucket:        "lights",
		FlushInterval: 1,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	client.WriteDeviceCommand("test-device", "simulated", "ON", true, time.Millisecond)
	client.Flush()
}

func TestWriteDeviceCommand(t *testing.T) {
	c, w := newFakeClient()
	c.WriteDeviceCommand("10.0.0.12", "telnet", "ON", false, 250*time.Millisecond)

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	line := lineProtocol(w.points[0])
	for _, want := range []string{
		"device_command,",
		"device_id=10.0.0.12",
		"transport=telnet",
		"action=ON",
		"success=false",
		"duration_ms=250i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteBulkAction(t *testing.T) {
	c, w := newFakeClient()
	c.WriteBulkAction("OFF", 3, 1, time.Second)

	line := lineProtocol(w.points[0])
	for _, want := range []string{"bulk_action,action=OFF", "devices_total=3i", "devices_failed=1i", "success=false"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteScheduleFired(t *testing.T) {
	c, w := newFakeClient()
	firedAt := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	c.WriteScheduleFired(42, "ON", 2, 0, firedAt)

	p := w.points[0]
	if !p.Time().Equal(firedAt) {
		t.Errorf("point time = %v, want %v", p.Time(), firedAt)
	}
	line := lineProtocol(p)
	for _, want := range []string{"schedule_fired,", "schedule_id=42", "success=true"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWrites_NoopWhenClosedOrNil(t *testing.T) {
	c, w := newFakeClient()
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("Close() flushes = %d, want 1", w.flushes)
	}

	c.WriteDeviceCommand("a", "telnet", "ON", true, 0)
	c.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Error("closed client should not write or flush")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	var nilClient *Client
	nilClient.WriteBulkAction("ON", 1, 0, 0)
	if nilClient.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c, _ := newFakeClient()
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	ch := make(chan error, 1)
	ch <- errors.New("bucket not found")
	close(ch)
	c.handleWriteErrors(ch)

	select {
	case err := <-got:
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	default:
		t.Fatal("callback not invoked")
	}
}
