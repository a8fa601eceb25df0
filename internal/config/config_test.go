package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, `{"ports":[
		{"name":"A","serial_port":"/dev/ttyUSB0","serial_baudrate":9600,
		 "serial_bytesize":8,"serial_parity":"N","serial_stopbits":1,
		 "tcp_host":"10.0.0.1","tcp_port":9000}
	]}`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Ports) != 1 {
		t.Fatalf("expected 1 port, got %d", len(doc.Ports))
	}
	p := doc.Ports[0]
	if p.BufferSize != DefaultBufferSize {
		t.Errorf("BufferSize = %d, want default %d", p.BufferSize, DefaultBufferSize)
	}
	if p.ReconnectInterval != DefaultReconnectInterval {
		t.Errorf("ReconnectInterval = %d, want default %d", p.ReconnectInterval, DefaultReconnectInterval)
	}
	if p.SendDelay != DefaultSendDelay {
		t.Errorf("SendDelay = %d, want default %d", p.SendDelay, DefaultSendDelay)
	}
}

func TestLoadSelectsHTTPRelayWhenURLPresent(t *testing.T) {
	path := writeTestConfig(t, `{"ports":[
		{"name":"A","serial_port":"/dev/ttyUSB0","serial_baudrate":9600,
		 "serial_bytesize":8,"serial_parity":"N","serial_stopbits":1,
		 "tcp_host":"10.0.0.1","tcp_port":9000,"http_url":"http://relay.example/ingest"}
	]}`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Ports[0].HTTPURL == "" {
		t.Fatal("expected http_url to be decoded")
	}
}

func TestValidateRejectsInvalidParity(t *testing.T) {
	doc := &Document{Ports: []PortConfig{{
		Name: "A", SerialPort: "/dev/ttyUSB0", SerialBaudrate: 9600,
		SerialBytesize: 8, SerialParity: "X", SerialStopbits: 1,
		TCPHost: "h", TCPPort: 1,
		BufferSize: 1, ReconnectInterval: 1, SendDelay: 1,
	}}}
	if err := Validate(doc); err == nil {
		t.Fatal("expected validation error for parity \"X\"")
	}
}

func TestValidateRejectsDuplicatePortNames(t *testing.T) {
	base := PortConfig{
		Name: "A", SerialPort: "/dev/ttyUSB0", SerialBaudrate: 9600,
		SerialBytesize: 8, SerialParity: "N", SerialStopbits: 1,
		TCPHost: "h", TCPPort: 1,
		BufferSize: 1, ReconnectInterval: 1, SendDelay: 1,
	}
	doc := &Document{Ports: []PortConfig{base, base}}
	if err := Validate(doc); err == nil {
		t.Fatal("expected validation error for duplicate port names")
	}
}

func TestValidateRejectsEmptyPortList(t *testing.T) {
	doc := &Document{}
	if err := Validate(doc); err == nil {
		t.Fatal("expected validation error for an empty port list")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
