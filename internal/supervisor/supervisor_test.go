package supervisor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestSupervisorStartStopTwoPorts(t *testing.T) {
	configPath := writeConfig(t, `{"ports":[
		{"name":"A","serial_port":"/dev/nonexistent-a","serial_baudrate":9600,
		 "serial_bytesize":8,"serial_parity":"N","serial_stopbits":1,
		 "tcp_host":"127.0.0.1","tcp_port":1},
		{"name":"B","serial_port":"/dev/nonexistent-b","serial_baudrate":9600,
		 "serial_bytesize":8,"serial_parity":"N","serial_stopbits":1,
		 "tcp_host":"127.0.0.1","tcp_port":2}
	]}`)

	sup, err := New(configPath, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sup.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := sup.Status()
	if len(status) != 2 {
		t.Fatalf("expected 2 port statuses, got %d", len(status))
	}
	if _, ok := status["A"]; !ok {
		t.Error("missing status for port A")
	}
	if _, ok := status["B"]; !ok {
		t.Error("missing status for port B")
	}

	sup.Stop()
}

func TestSupervisorRejectsInvalidConfig(t *testing.T) {
	configPath := writeConfig(t, `{"ports":[]}`)
	if _, err := New(configPath, t.TempDir(), nil); err == nil {
		t.Fatal("expected New to reject a config with no ports")
	}
}
