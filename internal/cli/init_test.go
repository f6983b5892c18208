package cli

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"crm/internal/config"
	"crm/internal/core"
	"crm/internal/services"
)

func TestRateTable(t *testing.T) {
	cfg := &config.Config{
		DefaultHourlyRate: core.Money{Cents: 5000},
		ProjectRates:      map[int64]core.Money{7: {Cents: 9000}},
	}
	rt := RateTable(cfg)

	tests := []struct {
		project int64
		want    int64
	}{
		{7, 9000},
		{8, 5000},
	}
	for _, tt := range tests {
		got, err := rt.RateFor(tt.project)
		if err != nil {
			t.Fatalf("RateFor(%d): %v", tt.project, err)
		}
		if got.Cents != tt.want {
			t.Errorf("RateFor(%d) = %d, want %d", tt.project, got.Cents, tt.want)
		}
	}

	// the table owns its map
	cfg.ProjectRates[8] = core.Money{Cents: 1}
	if got, _ := rt.RateFor(8); got.Cents != 5000 {
		t.Errorf("rate table shares the config map")
	}
}

func TestAlertConfig(t *testing.T) {
	cfg := &config.Config{
		UpcomingDays:       3,
		InactivityDays:     10,
		ContractWindowDays: 20,
		StaleUnbilledDays:  40,
	}
	ac := AlertConfig(cfg)
	if ac.UpcomingDays != 3 || ac.Thresholds.InactivityDays != 10 ||
		ac.Thresholds.ContractWindowDays != 20 || ac.Thresholds.StaleUnbilledDays != 40 {
		t.Fatalf("AlertConfig = %+v", ac)
	}
	if len(ac.Rules) != len(services.DefaultSuggestionRules) {
		t.Errorf("empty rule list should select the defaults, got %v", ac.Rules)
	}

	cfg.SuggestionRules = []string{services.RuleOverdueProject}
	if got := AlertConfig(cfg).Rules; len(got) != 1 || got[0] != services.RuleOverdueProject {
		t.Errorf("Rules = %v", got)
	}
}

func TestAlertCache(t *testing.T) {
	cfg := &config.Config{AlertsCacheTTL: time.Minute}

	c, cleaner := AlertCache(cfg, nil)
	if _, ok := c.(*services.LocalAlertCache); !ok || cleaner == nil {
		t.Fatalf("without redis: got %T with cleaner %v", c, cleaner)
	}

	mr := miniredis.RunT(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	rdb, err := OpenRedis(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	defer rdb.Close()

	c, cleaner = AlertCache(cfg, rdb)
	if _, ok := c.(*services.RedisAlertCache); !ok || cleaner != nil {
		t.Fatalf("with redis: got %T with cleaner %v", c, cleaner)
	}
}

func TestOpenRedis(t *testing.T) {
	rdb, err := OpenRedis(context.Background(), &config.Config{})
	if err != nil || rdb != nil {
		t.Fatalf("no REDIS_URL: got %v, %v", rdb, err)
	}

	if _, err := OpenRedis(context.Background(), &config.Config{RedisURL: "://bad"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOpenAMQP_Disabled(t *testing.T) {
	client, err := OpenAMQP(&config.Config{})
	if err != nil || client != nil {
		t.Fatalf("no AMQP_URL: got %v, %v", client, err)
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("bogus", "test")
	if logger.Component() != "test" {
		t.Errorf("Component() = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), 0) {
		t.Error("info should be enabled after an unknown level")
	}
}
