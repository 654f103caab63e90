package documents

import "testing"

func TestStatusValid(t *testing.T) {
	valid := []Status{
		StatusUploaded, StatusOCRProcessing, StatusOCRCompleted,
		StatusConfirmed, StatusRejected, StatusReviewed, StatusReviewRejected,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []Status{"", "pending", "done", "UPLOADED"} {
		if s.Valid() {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestStatusEditable(t *testing.T) {
	cases := map[Status]bool{
		StatusUploaded:       true,
		StatusOCRCompleted:   true,
		StatusOCRProcessing:  false,
		StatusConfirmed:      false,
		StatusRejected:       false,
		StatusReviewed:       false,
		StatusReviewRejected: false,
	}
	for s, want := range cases {
		if got := s.Editable(); got != want {
			t.Errorf("Editable(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusUploaded, StatusOCRProcessing},
		{StatusUploaded, StatusConfirmed},
		{StatusUploaded, StatusRejected},
		{StatusOCRProcessing, StatusOCRCompleted},
		{StatusOCRProcessing, StatusUploaded},
		{StatusOCRCompleted, StatusOCRProcessing},
		{StatusOCRCompleted, StatusConfirmed},
		{StatusOCRCompleted, StatusRejected},
		{StatusConfirmed, StatusReviewed},
		{StatusConfirmed, StatusReviewRejected},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %q -> %q to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusUploaded, StatusReviewed},
		{StatusUploaded, StatusOCRCompleted},
		{StatusOCRProcessing, StatusConfirmed},
		{StatusConfirmed, StatusUploaded},
		{StatusConfirmed, StatusConfirmed},
		{StatusRejected, StatusUploaded},
		{StatusReviewed, StatusConfirmed},
		{StatusReviewRejected, StatusConfirmed},
		{StatusUploaded, Status("bogus")},
		{Status("bogus"), StatusUploaded},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %q -> %q to be denied", tc.from, tc.to)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusReviewed, StatusReviewRejected} {
		for _, to := range []Status{
			StatusUploaded, StatusOCRProcessing, StatusOCRCompleted,
			StatusConfirmed, StatusRejected, StatusReviewed, StatusReviewRejected,
		} {
			if CanTransition(s, to) {
				t.Errorf("terminal status %q should not transition to %q", s, to)
			}
		}
	}
}
