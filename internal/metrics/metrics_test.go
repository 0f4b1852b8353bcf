package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAttempt(t *testing.T) {
	before := testutil.ToFloat64(GenerationAttemptsTotal.WithLabelValues("single", "success"))
	RecordAttempt("single", "success", 12)
	after := testutil.ToFloat64(GenerationAttemptsTotal.WithLabelValues("single", "success"))
	if after-before != 1 {
		t.Fatalf("attempt counter moved by %v", after-before)
	}
	if n := testutil.CollectAndCount(GenerationDuration); n == 0 {
		t.Fatal("expected a duration series")
	}
}

func TestRecordRecoveryResultSkipsUnattributed(t *testing.T) {
	before := testutil.CollectAndCount(RecoveryResultTotal)
	RecordRecoveryResult("", "success")
	if got := testutil.CollectAndCount(RecoveryResultTotal); got != before {
		t.Fatalf("unattributed result created a series: %d -> %d", before, got)
	}
	RecordRecoveryResult("lower_legs", "success")
	if v := testutil.ToFloat64(RecoveryResultTotal.WithLabelValues("lower_legs", "success")); v < 1 {
		t.Fatalf("recovery result = %v", v)
	}
}
