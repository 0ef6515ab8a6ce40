package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolSize(t *testing.T) {
	cases := []struct {
		maxConcurrency int
		want           int
	}{
		{1, 1},
		{16, 16},
		{32, 32},
		{500, 32},
		{0, 1},
	}
	for _, c := range cases {
		if got := PoolSize(c.maxConcurrency); got != c.want {
			t.Errorf("PoolSize(%d) = %d, want %d", c.maxConcurrency, got, c.want)
		}
	}
}

func TestPoolRunsTasksAndReturnsResults(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	gen := NewMockGenerator(MockStep{Result: &Result{Text: "hello"}})
	res, err := p.Generate(context.Background(), gen, &Request{Target: "models/default", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "hello" {
		t.Fatalf("Text = %q, want hello", res.Text)
	}

	failing := NewMockGenerator(MockStep{Err: errors.New("boom")})
	if _, err := p.Generate(context.Background(), failing, &Request{}); err == nil {
		t.Fatal("expected error from failing generator")
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var inFlight, peak atomic.Int32
	gen := generatorFunc(func(ctx context.Context, req *Request) (*Result, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return &Result{Text: "ok"}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Generate(context.Background(), gen, &Request{}); err != nil {
				t.Errorf("Generate: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Fatalf("peak in-flight = %d, want <= 2", got)
	}
}

func TestPoolAbandonsCallOnContextExpiry(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	gen := NewMockGenerator(MockStep{Block: true})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Generate(ctx, gen, &Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("caller blocked %v past its deadline", elapsed)
	}
}

type generatorFunc func(ctx context.Context, req *Request) (*Result, error)

func (f generatorFunc) Generate(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}
