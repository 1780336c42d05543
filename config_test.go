package main

import "testing"

func TestParseConfigFlattensAllKinds(t *testing.T) {
	data := []byte(`
[http.main]
port = 3128

[socks4.a]
port = 1080

[socks5.b]
port = 1081

[tcppm.db]
port = 5432
target = "10.0.0.2:5432"
`)
	cfg, err := parseConfig(data)
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if len(cfg.Listeners) != 4 {
		t.Fatalf("expected 4 listeners, got %d", len(cfg.Listeners))
	}
}

func TestParseConfigRejectsDuplicatePorts(t *testing.T) {
	data := []byte(`
[http.a]
port = 3128

[socks5.b]
port = 3128
`)
	if _, err := parseConfig(data); err == nil {
		t.Fatalf("expected error for duplicate port")
	}
}

func TestParseConfigRequiresTcppmTarget(t *testing.T) {
	data := []byte(`
[tcppm.db]
port = 5432
`)
	if _, err := parseConfig(data); err == nil {
		t.Fatalf("expected error for missing tcppm target")
	}
}

func TestParseConfigRejectsTargetOutsideTcppm(t *testing.T) {
	data := []byte(`
[http.a]
port = 3128
target = "10.0.0.2:80"
`)
	if _, err := parseConfig(data); err == nil {
		t.Fatalf("expected error for target on a non-tcppm listener")
	}
}

func TestParseConfigRejectsEmpty(t *testing.T) {
	if _, err := parseConfig([]byte("")); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	if err != nil {
		t.Fatalf("LoadDefaultConfig: %v", err)
	}
	if len(cfg.Listeners) != 1 || cfg.Listeners[0].Kind != "http" || cfg.Listeners[0].Port != 3128 {
		t.Fatalf("got %+v", cfg.Listeners)
	}
}
