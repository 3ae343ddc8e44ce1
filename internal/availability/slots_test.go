package availability

import (
	"reflect"
	"testing"
	"time"
)

// 2026-01-28 is a Wednesday.
var wednesday = time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

func workday() []Rule {
	return []Rule{{Weekday: int(time.Wednesday), StartMin: 540, EndMin: 1020}}
}

func TestOpenSlots_NoRuleForWeekday(t *testing.T) {
	rules := []Rule{{Weekday: int(time.Monday), StartMin: 540, EndMin: 1020}}
	slots := OpenSlots(wednesday, rules, nil, 0, 30)
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestOpenSlots_FullDay(t *testing.T) {
	slots := OpenSlots(wednesday, workday(), nil, 0, 30)
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	for i, m := range slots {
		if want := 540 + i*30; m != want {
			t.Fatalf("slot %d: expected %d, got %d", i, want, m)
		}
	}
	if last := slots[len(slots)-1]; last != 990 {
		t.Fatalf("expected last slot 990, got %d", last)
	}
}

func TestOpenSlots_BufferAroundBooking(t *testing.T) {
	bookings := []Interval{{StartMin: 600, EndMin: 630}}
	slots := OpenSlots(wednesday, workday(), bookings, 15, 30)

	offered := map[int]bool{}
	for _, m := range slots {
		offered[m] = true
	}
	for _, m := range []int{570, 600, 630} {
		if offered[m] {
			t.Fatalf("slot %s should be blocked", FormatMinutes(m))
		}
	}
	for _, m := range []int{540, 660} {
		if !offered[m] {
			t.Fatalf("slot %s should be offered", FormatMinutes(m))
		}
	}
	if len(slots) != 13 {
		t.Fatalf("expected 13 slots, got %d", len(slots))
	}
}

func TestOpenSlots_ZeroBufferExactOverlapOnly(t *testing.T) {
	bookings := []Interval{{StartMin: 600, EndMin: 630}}
	slots := OpenSlots(wednesday, workday(), bookings, 0, 30)
	if len(slots) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(slots))
	}
	for _, m := range slots {
		if m == 600 {
			t.Fatal("booked slot 600 offered")
		}
	}
}

func TestOpenSlots_Idempotent(t *testing.T) {
	bookings := []Interval{{StartMin: 700, EndMin: 745}, {StartMin: 900, EndMin: 930}}
	a := OpenSlots(wednesday, workday(), bookings, 10, 30)
	b := OpenSlots(wednesday, workday(), bookings, 10, 30)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("results differ: %v vs %v", a, b)
	}
}

func TestOpenSlots_FarSlotsNeverBlocked(t *testing.T) {
	var bookings []Interval
	for i := 0; i < 50; i++ {
		bookings = append(bookings, Interval{StartMin: 780, EndMin: 810})
	}
	slots := OpenSlots(wednesday, workday(), bookings, 5, 30)
	if slots[0] != 540 || slots[len(slots)-1] != 990 {
		t.Fatalf("distant slots dropped: %v", slots)
	}
}

func TestOpenSlots_FirstMatchingRuleWins(t *testing.T) {
	rules := []Rule{
		{Weekday: int(time.Wednesday), StartMin: 600, EndMin: 660},
		{Weekday: int(time.Wednesday), StartMin: 540, EndMin: 1020},
	}
	slots := OpenSlots(wednesday, rules, nil, 0, 30)
	if !reflect.DeepEqual(slots, []int{600, 630}) {
		t.Fatalf("expected first rule grid, got %v", slots)
	}
}

func TestOpenSlots_PartialTrailingSlotDropped(t *testing.T) {
	rules := []Rule{{Weekday: int(time.Wednesday), StartMin: 540, EndMin: 600}}
	slots := OpenSlots(wednesday, rules, nil, 0, 45)
	if !reflect.DeepEqual(slots, []int{540}) {
		t.Fatalf("expected [540], got %v", slots)
	}
}

func TestToUTCMatchesDayRangeStart(t *testing.T) {
	for _, d := range []string{"2026-01-28", "2026-03-29", "2026-10-25", "2024-02-29"} {
		at, err := ToUTC(d, 0)
		if err != nil {
			t.Fatalf("ToUTC(%s): %v", d, err)
		}
		start, end, err := DayRange(d)
		if err != nil {
			t.Fatalf("DayRange(%s): %v", d, err)
		}
		if !at.Equal(start) {
			t.Fatalf("%s: ToUTC(0)=%s, DayRange start=%s", d, at, start)
		}
		if end.Sub(start) != 24*time.Hour {
			t.Fatalf("%s: day length %s", d, end.Sub(start))
		}
	}
}

func TestToUTC(t *testing.T) {
	at, err := ToUTC("2026-01-28", 570)
	if err != nil {
		t.Fatalf("ToUTC: %v", err)
	}
	want := time.Date(2026, 1, 28, 9, 30, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("expected %s, got %s", want, at)
	}
	if _, err := ToUTC("28/01/2026", 0); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestMinutesSince(t *testing.T) {
	start, _, _ := DayRange("2026-01-28")
	if got := MinutesSince(start, start.Add(10*time.Hour+15*time.Minute)); got != 615 {
		t.Fatalf("expected 615, got %d", got)
	}
}

func TestFormatMinutes(t *testing.T) {
	cases := map[int]string{0: "00:00", 540: "09:00", 990: "16:30", 1439: "23:59"}
	for in, want := range cases {
		if got := FormatMinutes(in); got != want {
			t.Fatalf("FormatMinutes(%d) = %s, want %s", in, got, want)
		}
	}
}
