package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/config"
	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/probe"
	"github.com/hamed0406/opsboard/internal/repo/memory"
)

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

func TestRegisterProbes_DefaultsWithoutFile(t *testing.T) {
	cfg := config.Config{ProbesFile: filepath.Join(t.TempDir(), "missing.yaml")}
	mem := memory.New()

	r := probe.NewRegistry(zap.NewNop(), nil, time.Second, 2)
	if err := registerProbes(cfg, r, mem, okPinger{}, zap.NewNop()); err != nil {
		t.Fatalf("registerProbes: %v", err)
	}
	if names := r.Names(); len(names) != 2 || names[0] != "feature-flags" || names[1] != "database" {
		t.Fatalf("unexpected probes %v", names)
	}
	for _, res := range r.RunAll(context.Background()) {
		if res.Status != domain.StatusOK {
			t.Fatalf("%s: %+v", res.Service, res)
		}
	}

	r2 := probe.NewRegistry(nil, nil, time.Second, 1)
	if err := registerProbes(cfg, r2, mem, nil, zap.NewNop()); err != nil {
		t.Fatal(err)
	}
	if len(r2.Names()) != 1 {
		t.Fatalf("without a database only the flag probe is registered: %v", r2.Names())
	}
}
