package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/housefly/backend/pkg/config"
)

type fakeCollector struct {
	name  string
	err   error
	calls *[]string
	count int
}

func (f *fakeCollector) Collect(ctx context.Context) (int, error) {
	*f.calls = append(*f.calls, f.name)
	return f.count, f.err
}

type fakeAggregator struct {
	err   error
	calls *[]string
}

func (f *fakeAggregator) Aggregate(ctx context.Context, weights config.Weights) error {
	*f.calls = append(*f.calls, "aggregate")
	return f.err
}

func newRefresher(calls *[]string, failStage string, stageErr error) *Refresher {
	mk := func(name string) *fakeCollector {
		c := &fakeCollector{name: name, calls: calls, count: 1}
		if name == failStage {
			c.err = stageErr
		}
		return c
	}
	agg := &fakeAggregator{calls: calls}
	if failStage == "aggregate" {
		agg.err = stageErr
	}
	return NewRefresher(
		mk("crime"), mk("infrastructure"), mk("demographics"), mk("sentiment"),
		agg, config.DefaultWeights(),
	)
}

func TestRunStageOrder(t *testing.T) {
	var calls []string
	r := newRefresher(&calls, "", nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"crime", "infrastructure", "demographics", "sentiment", "aggregate"}
	if len(calls) != len(want) {
		t.Fatalf("got %d stages, want %d: %v", len(calls), len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("stage %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestRunAbortsOnStageFailure(t *testing.T) {
	var calls []string
	boom := errors.New("upstream down")
	r := newRefresher(&calls, "infrastructure", boom)

	err := r.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}

	for _, c := range calls {
		if c == "demographics" || c == "sentiment" || c == "aggregate" {
			t.Errorf("stage %q ran after a failure", c)
		}
	}
}

func TestRunAggregateFailure(t *testing.T) {
	var calls []string
	boom := errors.New("bad weights")
	r := newRefresher(&calls, "aggregate", boom)

	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}
	if calls[len(calls)-1] != "aggregate" {
		t.Errorf("aggregate should be the last stage attempted: %v", calls)
	}
}
