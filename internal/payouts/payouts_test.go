package payouts

import (
	"testing"
	"time"
)

func TestCommissionFor(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		bps    int
		want   int64
	}{
		{"twenty percent", 10000, 2000, 2000},
		{"half cent rounds up", 1005, 1000, 101},
		{"below half rounds down", 1004, 1000, 100},
		{"zero rate", 5000, 0, 0},
		{"negative amount", -100, 1000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CommissionFor(tc.amount, tc.bps); got != tc.want {
				t.Fatalf("expected %d got %d", tc.want, got)
			}
		})
	}
}

func TestIsPayable(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := Commission{Status: StatusPendingHoldback, CreatedAt: created}
	holdback := 7 * 24 * time.Hour

	if IsPayable(c, created.Add(holdback-time.Second), holdback) {
		t.Fatal("expected commission to stay in holdback one second early")
	}
	if !IsPayable(c, created.Add(holdback), holdback) {
		t.Fatal("expected commission payable exactly at holdback end")
	}
	c.Status = StatusPaid
	if IsPayable(c, created.Add(30*24*time.Hour), holdback) {
		t.Fatal("paid commission must not become payable")
	}
}

func TestWeekStartAndKey(t *testing.T) {
	almaty := time.FixedZone("UTC+6", 6*60*60)
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 5, 15, 13, 0, 0, 0, time.UTC), "2024-05-13"},
		{time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), "2024-05-13"},
		{time.Date(2024, 5, 19, 23, 59, 0, 0, time.UTC), "2024-05-13"},
		// Monday 03:00 at UTC+6 is still Sunday in UTC.
		{time.Date(2024, 5, 20, 3, 0, 0, 0, almaty), "2024-05-13"},
		{time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC), "2024-12-30"},
	}
	for _, tc := range cases {
		ws := WeekStart(tc.in)
		if got := ws.Format("2006-01-02"); got != tc.want {
			t.Errorf("%s: expected %s got %s", tc.in, tc.want, got)
		}
		if ws.Weekday() != time.Monday || ws.Hour() != 0 || ws.Location() != time.UTC {
			t.Errorf("%s: week start %s is not Monday midnight UTC", tc.in, ws)
		}
	}

	if got := IdempotencyKey("p-1", WeekStart(cases[0].in)); got != "p-1_2024-05-13" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{StatusPendingHoldback, StatusPayable},
		{StatusPendingHoldback, StatusCancelled},
		{StatusPayable, StatusPaid},
		{StatusPayable, StatusCancelled},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}
	denied := [][2]string{
		{StatusPendingHoldback, StatusPaid},
		{StatusPaid, StatusCancelled},
		{StatusCancelled, StatusPayable},
		{StatusPayable, StatusPendingHoldback},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Errorf("unexpected transition %s -> %s", tr[0], tr[1])
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PAYOUT_HOLDBACK_DAYS", "")
	t.Setenv("PAYOUT_MIN_THRESHOLD_CENTS", "10000")
	t.Setenv("PAYOUT_RELEASE_INTERVAL_MINUTES", "")
	t.Setenv("PARTNER_DEFAULT_RATE_BPS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Holdback != 7*24*time.Hour {
		t.Fatalf("expected 7 day holdback, got %s", cfg.Holdback)
	}
	if cfg.MinPayoutCents != 10000 {
		t.Fatalf("expected threshold override, got %d", cfg.MinPayoutCents)
	}

	t.Setenv("PAYOUT_HOLDBACK_DAYS", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected zero holdback to be rejected")
	}
}
