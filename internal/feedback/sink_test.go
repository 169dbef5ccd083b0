package feedback_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/optiroute/optiroute/internal/feedback"
)

func newSink() *feedback.Sink {
	return feedback.NewSink(feedback.SinkConfig{
		Repository: feedback.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
}

func track(t *testing.T, sink *feedback.Sink, resultID string, predicted float64) {
	t.Helper()
	err := sink.TrackPending(context.Background(), &feedback.PendingPrediction{
		ResultID:  resultID,
		Predicted: predicted,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to track pending prediction: %v", err)
	}
}

func TestSink_InitialAccuracy(t *testing.T) {
	sink := newSink()

	if got := sink.RollingAccuracy(); got != feedback.DefaultInitialAccuracy {
		t.Errorf("initial accuracy = %f, want %f", got, feedback.DefaultInitialAccuracy)
	}
}

func TestSink_Observe_RollingAccuracy(t *testing.T) {
	sink := newSink()
	ctx := context.Background()

	// predicted 0.20 / actual 0.22 and predicted 0.30 / actual 0.25:
	// accuracy = mean(1-0.02, 1-0.05) = 0.965
	track(t, sink, "opt_1", 0.20)
	track(t, sink, "opt_2", 0.30)

	if _, err := sink.Observe(ctx, "opt_1", 0.22); err != nil {
		t.Fatalf("failed to observe: %v", err)
	}
	if _, err := sink.Observe(ctx, "opt_2", 0.25); err != nil {
		t.Fatalf("failed to observe: %v", err)
	}

	if got := sink.RollingAccuracy(); math.Abs(got-0.965) > 1e-9 {
		t.Errorf("rolling accuracy = %f, want 0.965", got)
	}
	if got := sink.RecordCount(); got != 2 {
		t.Errorf("record count = %d, want 2", got)
	}
}

func TestSink_Observe_UnknownResult(t *testing.T) {
	sink := newSink()

	_, err := sink.Observe(context.Background(), "opt_missing", 0.2)
	if !errors.Is(err, feedback.ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound, got %v", err)
	}
}

func TestSink_Observe_Terminal(t *testing.T) {
	sink := newSink()
	ctx := context.Background()

	track(t, sink, "opt_1", 0.2)

	if _, err := sink.Observe(ctx, "opt_1", 0.21); err != nil {
		t.Fatalf("failed to observe: %v", err)
	}

	// A result can only be observed once.
	_, err := sink.Observe(ctx, "opt_1", 0.30)
	if !errors.Is(err, feedback.ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound on second observation, got %v", err)
	}
}

func TestSink_Observe_WindowLimit(t *testing.T) {
	repo := feedback.NewInMemoryRepository()
	sink := feedback.NewSink(feedback.SinkConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		Window:     2,
	})
	ctx := context.Background()

	// Two older poor outcomes, then two recent perfect ones. With a window
	// of 2, only the perfect outcomes count.
	outcomes := []struct {
		predicted, actual float64
	}{
		{0.20, 0.45},
		{0.20, 0.45},
		{0.30, 0.30},
		{0.25, 0.25},
	}

	for i, o := range outcomes {
		id := fmt.Sprintf("opt_%d", i)
		track(t, sink, id, o.predicted)
		if _, err := sink.Observe(ctx, id, o.actual); err != nil {
			t.Fatalf("failed to observe %s: %v", id, err)
		}
	}

	if got := sink.RollingAccuracy(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("rolling accuracy = %f, want 1.0 with window 2", got)
	}
	if got := sink.RecordCount(); got != 4 {
		t.Errorf("record count = %d, want 4", got)
	}
}

func TestSink_RecordCarriesError(t *testing.T) {
	sink := newSink()
	ctx := context.Background()

	track(t, sink, "opt_1", 0.30)

	record, err := sink.Observe(ctx, "opt_1", 0.25)
	if err != nil {
		t.Fatalf("failed to observe: %v", err)
	}

	if math.Abs(record.AbsError-0.05) > 1e-9 {
		t.Errorf("abs error = %f, want 0.05", record.AbsError)
	}
}

func TestRepository_RecentForClient(t *testing.T) {
	repo := feedback.NewInMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := repo.Append(ctx, &feedback.Record{
			ResultID: fmt.Sprintf("opt_a%d", i),
			ClientID: "a",
		})
		if err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}
	if err := repo.Append(ctx, &feedback.Record{ResultID: "opt_b0", ClientID: "b"}); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	records, err := repo.RecentForClient(ctx, "a", 10)
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records for client a, got %d", len(records))
	}
	for _, r := range records {
		if r.ClientID != "a" {
			t.Errorf("record %s belongs to client %q", r.ResultID, r.ClientID)
		}
	}
}
