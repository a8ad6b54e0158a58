package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "session-trader/internal/errors"
	"session-trader/internal/models"
)

func newBreakerFixture(t *testing.T, threshold int, cooldown time.Duration) (*CircuitBreaker, *Paper) {
	t.Helper()
	paper := NewPaper(10000, models.DefaultInstruments(), zerolog.Nop())
	return WithCircuitBreaker(paper, threshold, cooldown, zerolog.Nop()), paper
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb, paper := newBreakerFixture(t, 3, time.Hour)
	ctx := context.Background()

	paper.SetDown(errors.New("venue down"))
	for i := 0; i < 3; i++ {
		if _, err := cb.Account(ctx); err == nil {
			t.Fatal("expected failure while venue is down")
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s after threshold failures, want open", cb.State())
	}

	// Fast-fail without reaching the venue.
	paper.SetDown(nil)
	if _, err := cb.Account(ctx); !apperrors.Is(err, apperrors.ErrBrokerUnavailable) {
		t.Errorf("err = %v while open, want ErrBrokerUnavailable", err)
	}
}

func TestCircuitRecoversAfterCooldown(t *testing.T) {
	cb, paper := newBreakerFixture(t, 1, 10*time.Millisecond)
	ctx := context.Background()

	paper.SetDown(errors.New("venue down"))
	cb.Account(ctx)
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	paper.SetDown(nil)
	time.Sleep(15 * time.Millisecond)

	// The probe succeeds and the circuit closes again.
	if _, err := cb.Account(ctx); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s after successful probe, want closed", cb.State())
	}
}

func TestCircuitHalfOpenFailureReopens(t *testing.T) {
	cb, paper := newBreakerFixture(t, 1, 10*time.Millisecond)
	ctx := context.Background()

	paper.SetDown(errors.New("venue down"))
	cb.Account(ctx)
	time.Sleep(15 * time.Millisecond)

	// Probe fails: straight back to open.
	if _, err := cb.Account(ctx); err == nil {
		t.Fatal("expected probe failure")
	}
	if cb.State() != CircuitOpen {
		t.Errorf("state = %s after failed probe, want open", cb.State())
	}
}

func TestCircuitNeverBlocksWrites(t *testing.T) {
	cb, paper := newBreakerFixture(t, 1, time.Hour)
	ctx := context.Background()

	ticket, err := paper.OpenPosition(ctx, "EURUSD", models.DirectionLong, 1.0)
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	// Trip the read path.
	paper.FailQuotes("EURUSD", errors.New("feed down"))
	cb.Quote(ctx, "EURUSD")
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	// Closing must still reach the venue.
	if err := cb.ClosePosition(ctx, ticket, 1.0); err != nil {
		t.Errorf("ClosePosition blocked by open circuit: %v", err)
	}
}
