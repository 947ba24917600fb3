package config

import (
	"reflect"
	"testing"
)

func TestParseChatIDs(t *testing.T) {
	got, err := ParseChatIDs([]string{"-1001234567890", " 42 ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int64{-1001234567890, 42}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("chat ids mismatch: %v != %v", got, want)
	}
}

func TestParseChatIDsInvalid(t *testing.T) {
	if _, err := ParseChatIDs([]string{"not-a-number"}); err == nil {
		t.Fatalf("expected error for invalid chat id")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.PollInterval.Seconds() != 10 {
		t.Fatalf("poll interval %v, want 10s", cfg.PollInterval)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("max retries %d, want 5", cfg.MaxRetries)
	}
	if cfg.ReportCron != "0 */4 * * *" {
		t.Fatalf("report cron %q", cfg.ReportCron)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level %q", cfg.LogLevel)
	}
}
