package schedule

import (
	"testing"
	"time"
)

func TestRecord(t *testing.T) {
	rec := Record{Status: StatusActive, IntervalSeconds: 3600}
	if !rec.Active() {
		t.Fatalf("active record reports inactive")
	}
	if rec.Interval() != time.Hour {
		t.Fatalf("interval = %v", rec.Interval())
	}

	rec.Status = StatusRetired
	if rec.Active() {
		t.Fatalf("retired record reports active")
	}

	// Zero status is not active: a record must be armed explicitly.
	if (Record{}).Active() {
		t.Fatalf("zero record reports active")
	}
}
