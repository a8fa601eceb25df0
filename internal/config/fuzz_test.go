package config

import (
	"os"
	"path/filepath"
	"testing"
)

// FuzzLoad exercises the JSON decode+validate path with arbitrary input; it
// must never panic, only return an error.
func FuzzLoad(f *testing.F) {
	f.Add([]byte(`{"ports":[]}`))
	f.Add([]byte(`{"ports":[{"name":"A","serial_port":"/dev/ttyUSB0","serial_baudrate":9600,"serial_bytesize":8,"serial_parity":"N","serial_stopbits":1,"tcp_host":"h","tcp_port":1}]}`))
	f.Add([]byte(`not json at all`))
	f.Add([]byte(`{}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fuzz.json")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return
		}
		_, _ = Load(path)
	})
}
