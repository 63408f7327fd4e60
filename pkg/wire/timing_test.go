package wire

import "testing"

func TestTimingRoundTrip(t *testing.T) {
	want := Timing{
		{Sec: 1000, Usec: 500},
		{Sec: 1002, Usec: 1},
		{}, // zero sentinel
	}
	b := want.Encode()
	if len(b) != TimingSize {
		t.Fatalf("Encode length = %d, want %d", len(b), TimingSize)
	}
	got := DecodeTiming(b)
	if got != want {
		t.Errorf("DecodeTiming() = %+v, want %+v", got, want)
	}
}

func TestTimevalIsZero(t *testing.T) {
	if !(Timeval{}).IsZero() {
		t.Error("zero-value Timeval.IsZero() = false, want true")
	}
	if (Timeval{Sec: 1}).IsZero() {
		t.Error("Timeval{Sec:1}.IsZero() = true, want false")
	}
}
