package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResultBasics(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Error("Ok result misreports state")
	}
	v, err := ok.Unwrap()
	if v != 42 || err != nil {
		t.Errorf("Unwrap = %d, %v", v, err)
	}

	bad := Err[int](errors.New("nope"))
	if bad.IsOk() {
		t.Error("Err result misreports state")
	}
	if got := bad.UnwrapOr(7); got != 7 {
		t.Errorf("UnwrapOr = %d, want 7", got)
	}
}

func TestFromPairAndCollect(t *testing.T) {
	if r := FromPair(1, error(nil)); r.IsErr() {
		t.Error("FromPair with nil error should be ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Error("FromPair with error should be err")
	}

	all := Collect([]Result[int]{Ok(1), Ok(2)})
	vals, err := all.Unwrap()
	if err != nil || len(vals) != 2 {
		t.Fatalf("Collect ok case: %v, %v", vals, err)
	}
	some := Collect([]Result[int]{Ok(1), Err[int](errors.New("bad"))})
	if some.IsOk() {
		t.Error("Collect should fail on first error")
	}
}

func TestThenShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(context.Context, int) Result[int] { return Err[int](boom) }
	secondRan := false
	second := func(_ context.Context, v int) Result[string] {
		secondRan = true
		return Ok("done")
	}

	r := Then(first, second)(context.Background(), 1)
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if secondRan {
		t.Error("second stage ran after first failed")
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(context.Context) Result[string] {
		attempts++
		if attempts < 3 {
			return Errf[string]("attempt %d", attempts)
		}
		return Ok("done")
	})
	if r.IsErr() {
		t.Fatal("retry should have succeeded on third attempt")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryGivesUp(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("always"))
	})
	if r.IsOk() || attempts != 2 {
		t.Errorf("attempts = %d, ok = %v", attempts, r.IsOk())
	}
}

func TestChunk(t *testing.T) {
	got := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[2]) != 1 {
		t.Errorf("Chunk = %v", got)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Error("Chunk with n<=0 should be nil")
	}
}

func TestMapResult(t *testing.T) {
	double := func(v int) int { return v * 2 }
	if got, _ := MapResult(Ok(3), double).Unwrap(); got != 6 {
		t.Errorf("MapResult = %d, want 6", got)
	}
	if MapResult(Err[int](errors.New("x")), double).IsOk() {
		t.Error("MapResult should carry the error through")
	}
}

func TestSliceHelpers(t *testing.T) {
	in := []int{1, 2, 3, 4}
	doubled := Map(in, func(v int) int { return v * 2 })
	if doubled[3] != 8 {
		t.Errorf("Map = %v", doubled)
	}
	even := Filter(in, func(v int) bool { return v%2 == 0 })
	if len(even) != 2 || even[0] != 2 {
		t.Errorf("Filter = %v", even)
	}
	got := FilterMap(in, func(v int) (int, bool) { return v * 10, v > 2 })
	if len(got) != 2 || got[0] != 30 || got[1] != 40 {
		t.Errorf("FilterMap = %v", got)
	}
}

func TestMapAndTapStages(t *testing.T) {
	ctx := context.Background()
	seen := 0
	stage := Then(
		MapStage(func(v int) int { return v + 1 }),
		TapStage(func(_ context.Context, v int) { seen = v }),
	)
	got, err := stage(ctx, 4).Unwrap()
	if err != nil || got != 5 || seen != 5 {
		t.Errorf("got %d (seen %d), err %v", got, seen, err)
	}
}

func TestRetryStage(t *testing.T) {
	attempts := 0
	stage := RetryStage(RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond},
		func(_ context.Context, v int) Result[int] {
			attempts++
			if attempts == 1 {
				return Errf[int]("transient")
			}
			return Ok(v)
		})
	got, err := stage(context.Background(), 9).Unwrap()
	if err != nil || got != 9 || attempts != 2 {
		t.Errorf("got %d after %d attempts, err %v", got, attempts, err)
	}
}

func TestParMapResultPreservesOrder(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}
	results := ParMapResult(in, 2, func(v int) Result[int] {
		if v == 3 {
			return Errf[int]("bad %d", v)
		}
		return Ok(v * 10)
	})
	for i, r := range results {
		if in[i] == 3 {
			if r.IsOk() {
				t.Error("expected error at index 2")
			}
			continue
		}
		if got, _ := r.Unwrap(); got != in[i]*10 {
			t.Errorf("results[%d] = %d", i, got)
		}
	}
}

func TestParMapPreservesOrder(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := ParMap(in, 3, func(v int) int { return v * 10 })
	for i, v := range out {
		if v != in[i]*10 {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
}
