package indicator

import (
	"math"
	"testing"
)

func TestSMAWarmupAndValues(t *testing.T) {
	sma := NewSMA(3)

	closes := []float64{1, 2, 3, 4, 5}
	want := []struct {
		value float64
		ready bool
	}{
		{0, false},
		{0, false},
		{2, true},
		{3, true},
		{4, true},
	}

	for i, c := range closes {
		sma.Update(c)
		v, ok := sma.Value()
		if ok != want[i].ready {
			t.Fatalf("after %d updates: ready = %v, want %v", i+1, ok, want[i].ready)
		}
		if ok && v != want[i].value {
			t.Errorf("after %d updates: value = %v, want %v", i+1, v, want[i].value)
		}
	}
}

func TestSMAMatchesMeanOfWindow(t *testing.T) {
	const period = 5
	sma := NewSMA(period)

	var closes []float64
	for i := 0; i < 50; i++ {
		closes = append(closes, 100+float64(i)*0.5)
		sma.Update(closes[i])

		v, ok := sma.Value()
		if i < period-1 {
			if ok {
				t.Fatalf("update %d: ready before warm-up", i+1)
			}
			continue
		}
		if !ok {
			t.Fatalf("update %d: not ready after warm-up", i+1)
		}

		sum := 0.0
		for _, c := range closes[len(closes)-period:] {
			sum += c
		}
		if want := sum / period; math.Abs(v-want) > 1e-12 {
			t.Errorf("update %d: value = %v, want %v", i+1, v, want)
		}
	}
}

func TestEMASeedAndSmoothing(t *testing.T) {
	// period 3: alpha = 0.5, seed is the SMA of the first three closes.
	ema := NewEMA(3)

	ema.Update(2)
	if _, ok := ema.Value(); ok {
		t.Fatal("ready after 1 update, want not ready")
	}
	ema.Update(4)
	if _, ok := ema.Value(); ok {
		t.Fatal("ready after 2 updates, want not ready")
	}

	ema.Update(6)
	v, ok := ema.Value()
	if !ok {
		t.Fatal("not ready after seed window")
	}
	if v != 4 {
		t.Errorf("seed value = %v, want 4", v)
	}

	ema.Update(8)
	v, _ = ema.Value()
	if want := 8*0.5 + 4*0.5; v != want {
		t.Errorf("smoothed value = %v, want %v", v, want)
	}
}

func TestRSIWarmup(t *testing.T) {
	// period deltas require period+1 closes.
	rsi := NewRSI(3)
	closes := []float64{10, 11, 10.5}
	for _, c := range closes {
		rsi.Update(c)
		if _, ok := rsi.Value(); ok {
			t.Fatal("ready before period deltas observed")
		}
	}
	rsi.Update(11.5)
	if _, ok := rsi.Value(); !ok {
		t.Fatal("not ready after period deltas")
	}
}

func TestRSIKnownValue(t *testing.T) {
	// Deltas +1, -0.5, +1 over period 3:
	// avgGain = 2/3, avgLoss = 1/6, RS = 4, RSI = 80.
	rsi := NewRSI(3)
	for _, c := range []float64{10, 11, 10.5, 11.5} {
		rsi.Update(c)
	}
	v, ok := rsi.Value()
	if !ok {
		t.Fatal("not ready")
	}
	if math.Abs(v-80) > 1e-9 {
		t.Errorf("RSI = %v, want 80", v)
	}
}

func TestRSIExtremes(t *testing.T) {
	t.Run("strictly rising hits 100", func(t *testing.T) {
		rsi := NewRSI(14)
		for i := 0; i < 40; i++ {
			rsi.Update(100 + float64(i))
		}
		v, ok := rsi.Value()
		if !ok {
			t.Fatal("not ready")
		}
		if v != 100 {
			t.Errorf("RSI = %v, want 100", v)
		}
	})

	t.Run("strictly falling hits 0", func(t *testing.T) {
		rsi := NewRSI(14)
		for i := 0; i < 40; i++ {
			rsi.Update(100 - float64(i))
		}
		v, ok := rsi.Value()
		if !ok {
			t.Fatal("not ready")
		}
		if v != 0 {
			t.Errorf("RSI = %v, want 0", v)
		}
	})

	t.Run("flat series reports 100", func(t *testing.T) {
		// Zero average loss is defined as RSI 100.
		rsi := NewRSI(5)
		for i := 0; i < 10; i++ {
			rsi.Update(50)
		}
		v, ok := rsi.Value()
		if !ok {
			t.Fatal("not ready")
		}
		if v != 100 {
			t.Errorf("RSI = %v, want 100", v)
		}
	})
}

func TestRSIStaysInBounds(t *testing.T) {
	rsi := NewRSI(7)
	closes := []float64{50, 53, 49, 51, 48, 55, 54, 52, 57, 50, 61, 44, 58, 47}
	for i, c := range closes {
		rsi.Update(c)
		if v, ok := rsi.Value(); ok {
			if v < 0 || v > 100 {
				t.Fatalf("update %d: RSI = %v out of [0, 100]", i+1, v)
			}
		}
	}
}

func TestIndicatorNames(t *testing.T) {
	tests := []struct {
		ind  Indicator
		want string
	}{
		{NewSMA(20), "sma(20)"},
		{NewEMA(9), "ema(9)"},
		{NewRSI(14), "rsi(14)"},
	}
	for _, tt := range tests {
		if got := tt.ind.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}

func TestDeterministicSequences(t *testing.T) {
	closes := []float64{10, 12, 11, 14, 13, 15, 16, 12, 18, 17}

	run := func() []float64 {
		sma, ema, rsi := NewSMA(3), NewEMA(3), NewRSI(3)
		var out []float64
		for _, c := range closes {
			sma.Update(c)
			ema.Update(c)
			rsi.Update(c)
			for _, ind := range []Indicator{sma, ema, rsi} {
				if v, ok := ind.Value(); ok {
					out = append(out, v)
				}
			}
		}
		return out
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("run lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("output %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}
