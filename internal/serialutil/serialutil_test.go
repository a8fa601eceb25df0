package serialutil

import "testing"

// TestListPortsDoesNotError only checks that enumeration succeeds on
// whatever host runs the test; it cannot assert on which devices are
// present since that is host-dependent, matching the teacher's own
// ScanAvailablePorts tests which tolerate an empty result.
func TestListPortsDoesNotError(t *testing.T) {
	if _, err := ListPorts(); err != nil {
		t.Fatalf("ListPorts: %v", err)
	}
}
