package daemon

import (
	"context"
	"testing"

	"sceneid/internal/config"
	"sceneid/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Metadata.APIKey = "test-key"
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.APIBind = "127.0.0.1:0"
	return &cfg
}

func TestDaemonStartStop(t *testing.T) {
	d, err := New(testConfig(t), logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("daemon should report running")
	}
	if status.Admission.MaxConcurrent != 3 {
		t.Fatalf("admission stats missing: %+v", status.Admission)
	}
	if len(status.RateLimits) != 5 {
		t.Fatalf("expected 5 rate limiters, got %d", len(status.RateLimits))
	}
	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("daemon should report stopped")
	}
}

func TestDaemonSecondInstanceRejected(t *testing.T) {
	cfg := testConfig(t)
	first, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer first.Close()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	second, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer second.Close()
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("second instance should fail to start")
	}
}

func TestDaemonHealthReportsStore(t *testing.T) {
	d, err := New(testConfig(t), logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	health := d.Health(context.Background())
	if !health.Healthy {
		t.Fatalf("fresh store should be healthy: %+v", health)
	}
	if !health.Accepting {
		t.Fatal("idle governor should accept work")
	}
	var hasStore bool
	for _, component := range health.Components {
		if component.Name == "store" && component.Healthy {
			hasStore = true
		}
	}
	if !hasStore {
		t.Fatalf("store component missing: %+v", health.Components)
	}
}
