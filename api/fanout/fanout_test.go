package fanout

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/backend"
)

func backends(t *testing.T, names ...string) []backend.Backend {
	t.Helper()
	out := make([]backend.Backend, 0, len(names))
	for _, n := range names {
		u, err := url.Parse("http://" + n + ".invalid/api")
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, backend.Backend{Name: n, BaseURL: u})
	}
	return out
}

type recorder struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string]bool
}

func (r *recorder) ObserveBranch(op, b string, _ time.Duration, items int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
		r.errs = map[string]bool{}
	}
	r.calls[op+"/"+b] = items
	r.errs[op+"/"+b] = err != nil
}

func TestRunPreservesRegistrationOrder(t *testing.T) {
	// The first backend answers last.
	delays := map[string]time.Duration{
		"A": 60 * time.Millisecond,
		"B": 30 * time.Millisecond,
		"C": 0,
	}

	got := Run(context.Background(), &Executor{}, "targets", backends(t, "A", "B", "C"),
		func(ctx context.Context, b backend.Backend) ([]string, error) {
			time.Sleep(delays[b.Name])
			return []string{b.Name + "1", b.Name + "2"}, nil
		})

	want := []string{"A1", "A2", "B1", "B2", "C1", "C2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectIsolatesFailures(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("connection refused")

	outcomes := Collect(context.Background(), &Executor{Observer: rec}, "sitemap", backends(t, "A", "B", "C"),
		func(ctx context.Context, b backend.Backend) ([]string, error) {
			switch b.Name {
			case "B":
				return []string{"partial"}, boom
			case "C":
				panic("nil map")
			}
			return []string{"/a"}, nil
		})

	if len(outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d, want 3", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Errorf("A: unexpected error %v", outcomes[0].Err)
	}
	if !errors.Is(outcomes[1].Err, boom) {
		t.Errorf("B: error = %v, want %v", outcomes[1].Err, boom)
	}
	if outcomes[1].Items != nil {
		t.Errorf("B: items = %v, want none from a failed call", outcomes[1].Items)
	}
	if !failure.Is(outcomes[2].Err, ErrBranchPanicked) {
		t.Errorf("C: error = %v, want %v", outcomes[2].Err, ErrBranchPanicked)
	}

	if diff := cmp.Diff([]string{"/a"}, Merge(outcomes)); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"B", "C"}, Failed(outcomes)); diff != "" {
		t.Errorf("Failed() mismatch (-want +got):\n%s", diff)
	}

	wantCalls := map[string]int{"sitemap/A": 1, "sitemap/B": 0, "sitemap/C": 0}
	if diff := cmp.Diff(wantCalls, rec.calls); diff != "" {
		t.Errorf("observer items mismatch (-want +got):\n%s", diff)
	}
	wantErrs := map[string]bool{"sitemap/A": false, "sitemap/B": true, "sitemap/C": true}
	if diff := cmp.Diff(wantErrs, rec.errs); diff != "" {
		t.Errorf("observer errors mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectTimeout(t *testing.T) {
	start := time.Now()
	outcomes := Collect(context.Background(), &Executor{Timeout: 50 * time.Millisecond}, "index", backends(t, "slow", "fast"),
		func(ctx context.Context, b backend.Backend) ([]int, error) {
			if b.Name == "slow" {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(5 * time.Second):
					return []int{1}, nil
				}
			}
			return []int{2}, nil
		})

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Collect() took %v, want the slow branch cut off by its timeout", elapsed)
	}
	if !errors.Is(outcomes[0].Err, context.DeadlineExceeded) {
		t.Errorf("slow: error = %v, want deadline exceeded", outcomes[0].Err)
	}
	if diff := cmp.Diff([]int{2}, Merge(outcomes)); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutorForCalls(t *testing.T) {
	obs := &recorder{}
	tests := []struct {
		name string
		e    *Executor
		n    int
		want time.Duration
	}{
		{name: "nil executor", e: nil, n: 3, want: 3 * DefaultTimeout},
		{name: "configured", e: &Executor{Timeout: time.Second, Observer: obs}, n: 4, want: 4 * time.Second},
		{name: "no calls", e: &Executor{Timeout: time.Second}, n: 0, want: time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.e.ForCalls(tt.n)
			if got.Timeout != tt.want {
				t.Errorf("ForCalls(%d).Timeout = %v, want %v", tt.n, got.Timeout, tt.want)
			}
			if tt.e != nil && got.Observer != tt.e.Observer {
				t.Errorf("ForCalls(%d) dropped the observer", tt.n)
			}
			if got.CallTimeout() == tt.e.CallTimeout() && tt.n > 1 {
				t.Errorf("ForCalls(%d) did not widen the branch deadline", tt.n)
			}
		})
	}
}

func TestCollectNoBackends(t *testing.T) {
	called := false
	got := Run(context.Background(), nil, "targets", nil,
		func(ctx context.Context, b backend.Backend) ([]string, error) {
			called = true
			return nil, nil
		})
	if called {
		t.Error("call invoked with no backends")
	}
	if len(got) != 0 {
		t.Errorf("Run() = %v, want empty", got)
	}
}

func TestCollectCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := Collect(ctx, nil, "render", backends(t, "A", "B"),
		func(ctx context.Context, b backend.Backend) ([]string, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return []string{b.Name}, nil
		})

	for _, o := range outcomes {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("%s: error = %v, want context canceled", o.Backend, o.Err)
		}
	}
}
