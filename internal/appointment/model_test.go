package appointment

import "testing"

func TestStatusLive(t *testing.T) {
	live := map[AppointmentStatus]bool{
		StatusScheduled:  true,
		StatusConfirmed:  true,
		StatusInProgress: false,
		StatusCompleted:  false,
		StatusCancelled:  false,
		StatusNoShow:     false,
	}
	for status, want := range live {
		if got := status.Live(); got != want {
			t.Errorf("%s.Live() = %v, want %v", status, got, want)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		ok       bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusNoShow, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusNoShow, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusNoShow, StatusConfirmed, false},
		{StatusConfirmed, StatusConfirmed, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}

	for _, s := range []AppointmentStatus{StatusCompleted, StatusCancelled, StatusNoShow} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("in_progress"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseStatus("archived"); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
