package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"hindsight/internal/domain"
)

// stubStrategy is a configurable test double.
type stubStrategy struct {
	name      string
	initErr   error
	initPanic bool
	evalErr   error
	evalPanic bool
	advice    domain.Advice
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Init(_ context.Context, _ *Setup) error {
	if s.initPanic {
		panic("init exploded")
	}
	return s.initErr
}

func (s *stubStrategy) OnCandle(_ context.Context, _ *Tick) (domain.Advice, error) {
	if s.evalPanic {
		panic("eval exploded")
	}
	if s.evalErr != nil {
		return domain.Hold(), s.evalErr
	}
	return s.advice, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("stub", func() Strategy { return &stubStrategy{name: "stub"} }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	s, ok := r.Get("stub")
	if !ok {
		t.Fatal("Get(stub) not found")
	}
	if s.Name() != "stub" {
		t.Errorf("Name() = %q, want %q", s.Name(), "stub")
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should not be found")
	}
}

func TestRegistryRejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewRegistry()
	factory := func() Strategy { return &stubStrategy{name: "dup"} }

	if err := r.Register("dup", factory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("dup", factory); err == nil {
		t.Error("duplicate Register should fail")
	}
	if err := r.Register("", factory); err == nil {
		t.Error("empty name Register should fail")
	}
}

func TestRegistryGetReturnsFreshInstances(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func() Strategy { return &stubStrategy{name: "stub"} })

	a, _ := r.Get("stub")
	b, _ := r.Get("stub")
	if a == b {
		t.Error("Get returned the same instance twice; runs would share state")
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		n := name
		r.Register(n, func() Strategy { return &stubStrategy{name: n} })
	}

	got := r.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSafeInit(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		if err := SafeInit(ctx, &stubStrategy{name: "ok"}, &Setup{}); err != nil {
			t.Errorf("SafeInit = %v, want nil", err)
		}
	})

	t.Run("error is wrapped", func(t *testing.T) {
		cause := fmt.Errorf("bad period")
		err := SafeInit(ctx, &stubStrategy{name: "bad", initErr: cause}, &Setup{})
		if !errors.Is(err, ErrInit) {
			t.Errorf("SafeInit error = %v, want ErrInit", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("SafeInit should preserve the cause, got %v", err)
		}
	})

	t.Run("panic is recovered", func(t *testing.T) {
		err := SafeInit(ctx, &stubStrategy{name: "boom", initPanic: true}, &Setup{})
		if !errors.Is(err, ErrInit) {
			t.Errorf("SafeInit after panic = %v, want ErrInit", err)
		}
	})
}

func TestSafeEvaluate(t *testing.T) {
	ctx := context.Background()
	tick := &Tick{Index: 7, Candle: domain.Candle{Timestamp: 1, Close: 100}}

	t.Run("success passes advice through", func(t *testing.T) {
		s := &stubStrategy{name: "ok", advice: domain.BuyAll("signal")}
		advice, err := SafeEvaluate(ctx, s, tick)
		if err != nil {
			t.Fatalf("SafeEvaluate: %v", err)
		}
		if advice.Action != domain.ActionBuy || !advice.All {
			t.Errorf("advice = %+v, want buy-all", advice)
		}
	})

	t.Run("error yields hold", func(t *testing.T) {
		s := &stubStrategy{name: "bad", evalErr: fmt.Errorf("division by market")}
		advice, err := SafeEvaluate(ctx, s, tick)
		if !errors.Is(err, ErrEvaluation) {
			t.Errorf("error = %v, want ErrEvaluation", err)
		}
		if advice.Action != domain.ActionNone {
			t.Errorf("advice on error = %+v, want hold", advice)
		}
	})

	t.Run("panic yields hold", func(t *testing.T) {
		s := &stubStrategy{name: "boom", evalPanic: true}
		advice, err := SafeEvaluate(ctx, s, tick)
		if !errors.Is(err, ErrEvaluation) {
			t.Errorf("error after panic = %v, want ErrEvaluation", err)
		}
		if advice.Action != domain.ActionNone {
			t.Errorf("advice after panic = %+v, want hold", advice)
		}
	})
}

func TestParamsHelpers(t *testing.T) {
	p := Params{
		"int":    3,
		"int64":  int64(4),
		"float":  2.5,
		"string": "fast",
	}

	if got := p.Int("int", 0); got != 3 {
		t.Errorf("Int(int) = %d, want 3", got)
	}
	if got := p.Int("int64", 0); got != 4 {
		t.Errorf("Int(int64) = %d, want 4", got)
	}
	if got := p.Int("float", 0); got != 2 {
		t.Errorf("Int(float) = %d, want 2", got)
	}
	if got := p.Int("missing", 9); got != 9 {
		t.Errorf("Int(missing) = %d, want default 9", got)
	}

	if got := p.Float("float", 0); got != 2.5 {
		t.Errorf("Float(float) = %v, want 2.5", got)
	}
	if got := p.Float("int", 0); got != 3 {
		t.Errorf("Float(int) = %v, want 3", got)
	}
	if got := p.Float("missing", 1.5); got != 1.5 {
		t.Errorf("Float(missing) = %v, want default 1.5", got)
	}

	if got := p.String("string", ""); got != "fast" {
		t.Errorf("String(string) = %q, want %q", got, "fast")
	}
	if got := p.String("int", "dflt"); got != "dflt" {
		t.Errorf("String(int) = %q, want default", got)
	}
}
