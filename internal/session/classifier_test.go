package session

import (
	"testing"
	"time"

	"session-trader/internal/models"
)

func utcSession(name models.SessionName, startMin, endMin int, enabled bool) models.Session {
	return models.Session{
		Name:        name,
		StartMinute: startMin,
		EndMinute:   endMin,
		Location:    time.UTC,
		Enabled:     enabled,
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 15, hour, minute, 0, 0, time.UTC)
}

func TestActiveSimpleWindow(t *testing.T) {
	c := NewClassifier([]models.Session{
		utcSession(models.SessionLondon, 8*60, 16*60, true),
	})

	tests := []struct {
		name   string
		t      time.Time
		active bool
	}{
		{"before open", at(7, 59), false},
		{"at open", at(8, 0), true},
		{"mid session", at(12, 0), true},
		{"just before close", at(15, 59), true},
		{"at close", at(16, 0), false},
		{"after close", at(20, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.IsActive(models.SessionLondon, tt.t)
			if got != tt.active {
				t.Errorf("IsActive(%v) = %v, want %v", tt.t, got, tt.active)
			}
		})
	}
}

func TestActiveWrapAroundWindow(t *testing.T) {
	// 22:00-04:00 wraps midnight.
	c := NewClassifier([]models.Session{
		utcSession(models.SessionAsian, 22*60, 4*60, true),
	})

	tests := []struct {
		name   string
		t      time.Time
		active bool
	}{
		{"late evening", at(23, 30), true},
		{"early morning", at(2, 0), true},
		{"midday", at(12, 0), false},
		{"at wrap start", at(22, 0), true},
		{"at wrap end", at(4, 0), false},
		{"just before wrap end", at(3, 59), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.IsActive(models.SessionAsian, tt.t)
			if got != tt.active {
				t.Errorf("IsActive(%v) = %v, want %v", tt.t, got, tt.active)
			}
		})
	}
}

func TestDisabledSessionNeverActive(t *testing.T) {
	c := NewClassifier([]models.Session{
		utcSession(models.SessionLondon, 8*60, 16*60, false),
	})

	if got := c.Active(at(12, 0)); len(got) != 0 {
		t.Errorf("Active returned %v for disabled session, want none", got)
	}
}

func TestOverlappingSessions(t *testing.T) {
	c := NewClassifier([]models.Session{
		utcSession(models.SessionAsian, 0, 8*60, true),
		utcSession(models.SessionLondon, 8*60, 16*60, true),
		utcSession(models.SessionNewYork, 13*60, 21*60, true),
	})

	// 14:00 UTC: london and new_york overlap.
	active := c.Active(at(14, 0))
	if len(active) != 2 {
		t.Fatalf("expected 2 active sessions at 14:00, got %v", active)
	}
	overlap := c.Overlapping(at(14, 0))
	if len(overlap) != 2 {
		t.Errorf("Overlapping = %v, want 2 sessions", overlap)
	}

	// 10:00 UTC: only london.
	active = c.Active(at(10, 0))
	if len(active) != 1 || active[0] != models.SessionLondon {
		t.Errorf("expected only london at 10:00, got %v", active)
	}
	if overlap := c.Overlapping(at(10, 0)); overlap != nil {
		t.Errorf("Overlapping = %v, want nil for single session", overlap)
	}
}

func TestActiveRespectsTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata not available")
	}

	// 09:00-15:00 Tokyo time.
	c := NewClassifier([]models.Session{
		{
			Name:        models.SessionAsian,
			StartMinute: 9 * 60,
			EndMinute:   15 * 60,
			Location:    tokyo,
			Enabled:     true,
		},
	})

	// 01:00 UTC is 10:00 Tokyo: active.
	if !c.IsActive(models.SessionAsian, at(1, 0)) {
		t.Error("expected asian session active at 01:00 UTC (10:00 Tokyo)")
	}
	// 12:00 UTC is 21:00 Tokyo: inactive.
	if c.IsActive(models.SessionAsian, at(12, 0)) {
		t.Error("expected asian session inactive at 12:00 UTC (21:00 Tokyo)")
	}
}

func TestNextStart(t *testing.T) {
	c := NewClassifier([]models.Session{
		utcSession(models.SessionLondon, 8*60, 16*60, true),
	})

	// Before open: next start is today 08:00.
	next := c.NextStart(models.SessionLondon, at(6, 0))
	if next.Hour() != 8 || next.Day() != 15 {
		t.Errorf("NextStart = %v, want today 08:00", next)
	}

	// After open: next start is tomorrow 08:00.
	next = c.NextStart(models.SessionLondon, at(9, 0))
	if next.Hour() != 8 || next.Day() != 16 {
		t.Errorf("NextStart = %v, want tomorrow 08:00", next)
	}

	// Unknown session yields zero time.
	if next := c.NextStart(models.SessionName("tokyo"), at(9, 0)); !next.IsZero() {
		t.Errorf("NextStart for unknown session = %v, want zero", next)
	}
}
