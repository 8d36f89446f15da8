package ftpd

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollectorRecordsCommand(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordCommand("LIST", true, 5*time.Millisecond)
	c.RecordCommand("LIST", false, 5*time.Millisecond)

	if got := testutil.ToFloat64(c.commands.WithLabelValues("LIST", "true")); got != 1 {
		t.Errorf("commands[LIST,true] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.commands.WithLabelValues("LIST", "false")); got != 1 {
		t.Errorf("commands[LIST,false] = %v, want 1", got)
	}
}

func TestPrometheusCollectorRecordsTransferAndAuth(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordTransfer("RETR", 1024, 10*time.Millisecond)
	if got := testutil.ToFloat64(c.transferBytes.WithLabelValues("RETR")); got != 1024 {
		t.Errorf("transferBytes[RETR] = %v, want 1024", got)
	}

	c.RecordAuthentication(true, "anonymous")
	c.RecordAuthentication(false, "bob")
	if got := testutil.ToFloat64(c.authAttempts.WithLabelValues("true")); got != 1 {
		t.Errorf("authAttempts[true] = %v, want 1", got)
	}

	c.RecordConnection(true, "accepted")
	if got := testutil.ToFloat64(c.connections.WithLabelValues("true", "accepted")); got != 1 {
		t.Errorf("connections[true,accepted] = %v, want 1", got)
	}
}

func TestBoolLabel(t *testing.T) {
	t.Parallel()
	if boolLabel(true) != "true" {
		t.Error("boolLabel(true) != \"true\"")
	}
	if boolLabel(false) != "false" {
		t.Error("boolLabel(false) != \"false\"")
	}
}
