package agent

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"signage.relay/internal/core/domain"
)

type fakeLocal struct {
	actions   []string
	payloads  []map[string]any
	probedIPs []string
	result    map[string]any
	err       error
}

func (f *fakeLocal) DeviceAction(ctx context.Context, action string, payload map[string]any) (map[string]any, error) {
	f.actions = append(f.actions, action)
	f.payloads = append(f.payloads, payload)
	return f.result, f.err
}

func (f *fakeLocal) AutoProbe(ctx context.Context, ip string) (map[string]any, error) {
	f.probedIPs = append(f.probedIPs, ip)
	return f.result, f.err
}

func job(kind domain.JobKind, payload map[string]any) *domain.Job {
	return &domain.Job{ID: "j-1", AgentID: "site-7", Kind: kind, Payload: payload}
}

func TestExecuteDeviceActionPassthrough(t *testing.T) {
	local := &fakeLocal{result: map[string]any{"ok": true}}
	exec := NewExecutor(local)

	res, err := exec.Execute(context.Background(), job(domain.KindDeviceAction, map[string]any{
		"action":  "power",
		"payload": map[string]any{"ip": "10.0.0.5", "state": "ON"},
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res["ok"] != true {
		t.Errorf("result not forwarded: %v", res)
	}
	if len(local.actions) != 1 || local.actions[0] != "power" {
		t.Fatalf("unexpected actions: %v", local.actions)
	}
	if local.payloads[0]["state"] != "ON" {
		t.Errorf("inner payload not forwarded: %v", local.payloads[0])
	}
}

func TestExecuteProbe(t *testing.T) {
	local := &fakeLocal{result: map[string]any{"protocol": "MDC"}}
	exec := NewExecutor(local)

	if _, err := exec.Execute(context.Background(), job(domain.KindProbe, map[string]any{"ip": "10.0.0.9"})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(local.probedIPs) != 1 || local.probedIPs[0] != "10.0.0.9" {
		t.Fatalf("unexpected probes: %v", local.probedIPs)
	}

	// tv_ip wins over ip when both are present.
	if _, err := exec.Execute(context.Background(), job(domain.KindProbe, map[string]any{
		"tv_ip": "10.0.0.1", "ip": "10.0.0.2",
	})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if local.probedIPs[1] != "10.0.0.1" {
		t.Errorf("tv_ip alias should take precedence, probed %s", local.probedIPs[1])
	}
}

func TestExecuteTV(t *testing.T) {
	tests := []struct {
		name      string
		payload   map[string]any
		wantState string
	}{
		{"on", map[string]any{"ip": "10.0.0.5", "command": "on"}, "ON"},
		{"off uppercase", map[string]any{"ip": "10.0.0.5", "command": "OFF"}, "OFF"},
		{"reboot padded", map[string]any{"ip": "10.0.0.5", "command": " reboot "}, "REBOOT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &fakeLocal{result: map[string]any{}}
			exec := NewExecutor(local)

			if _, err := exec.Execute(context.Background(), job(domain.KindTV, tt.payload)); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if local.actions[0] != "power" {
				t.Fatalf("expected power action, got %s", local.actions[0])
			}
			sent := local.payloads[0]
			want := map[string]any{
				"tv_ip":      "10.0.0.5",
				"ip":         "10.0.0.5",
				"port":       defaultMDCPort,
				"display_id": defaultDisplayID,
				"protocol":   "AUTO",
				"state":      tt.wantState,
			}
			if !reflect.DeepEqual(sent, want) {
				t.Errorf("payload mismatch:\n got %v\nwant %v", sent, want)
			}
		})
	}
}

func TestExecuteTVInvalidCommand(t *testing.T) {
	exec := NewExecutor(&fakeLocal{})
	_, err := exec.Execute(context.Background(), job(domain.KindTV, map[string]any{
		"ip": "10.0.0.5", "command": "toggle",
	}))
	if err == nil || !strings.Contains(err.Error(), "on|off|reboot") {
		t.Fatalf("expected command validation error, got %v", err)
	}
}

func TestExecuteTestOverridesDefaults(t *testing.T) {
	local := &fakeLocal{result: map[string]any{}}
	exec := NewExecutor(local)

	if _, err := exec.Execute(context.Background(), job(domain.KindTest, map[string]any{
		"tv_ip":      "10.0.0.8",
		"port":       float64(1516), // JSON numbers decode as float64
		"display_id": float64(2),
		"protocol":   "MDC",
	})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if local.actions[0] != "status" {
		t.Fatalf("expected status action, got %s", local.actions[0])
	}
	sent := local.payloads[0]
	if sent["port"] != 1516 || sent["display_id"] != 2 || sent["protocol"] != "MDC" {
		t.Errorf("overrides not honored: %v", sent)
	}
}

func TestExecuteMDC(t *testing.T) {
	tests := []struct {
		name       string
		payload    map[string]any
		wantAction string
	}{
		{
			"explicit get",
			map[string]any{"ip": "10.0.0.5", "command": "volume", "operation": "get"},
			"cli_get",
		},
		{
			"explicit set",
			map[string]any{"ip": "10.0.0.5", "command": "volume", "operation": "set", "args": []any{float64(30)}},
			"cli_set",
		},
		{
			"auto with args is a set",
			map[string]any{"ip": "10.0.0.5", "command": "volume", "args": []any{float64(30)}},
			"cli_set",
		},
		{
			"auto without args is a get",
			map[string]any{"ip": "10.0.0.5", "command": "volume"},
			"cli_get",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &fakeLocal{result: map[string]any{}}
			exec := NewExecutor(local)

			if _, err := exec.Execute(context.Background(), job(domain.KindMDCExecute, tt.payload)); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if local.actions[0] != tt.wantAction {
				t.Fatalf("expected %s, got %s", tt.wantAction, local.actions[0])
			}
			sent := local.payloads[0]
			if sent["command"] != "volume" {
				t.Errorf("command not forwarded: %v", sent)
			}
			if _, ok := sent["args"].([]any); !ok {
				t.Errorf("args must always be an array, got %v", sent["args"])
			}
		})
	}
}

func TestExecuteValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.JobKind
		payload map[string]any
		wantMsg string
	}{
		{"device_action missing action", domain.KindDeviceAction, map[string]any{"payload": map[string]any{}}, "requires action"},
		{"device_action missing inner payload", domain.KindDeviceAction, map[string]any{"action": "power"}, "requires action"},
		{"probe missing ip", domain.KindProbe, map[string]any{}, "requires tv_ip"},
		{"tv missing ip", domain.KindTV, map[string]any{"command": "on"}, "requires tv_ip"},
		{"test bad port", domain.KindTest, map[string]any{"ip": "10.0.0.5", "port": "abc"}, "port must be an integer"},
		{"mdc missing command", domain.KindMDCExecute, map[string]any{"ip": "10.0.0.5"}, "requires command"},
		{"mdc args not array", domain.KindMDCExecute, map[string]any{"ip": "10.0.0.5", "command": "volume", "args": "30"}, "args must be an array"},
		{"mdc bad operation", domain.KindMDCExecute, map[string]any{"ip": "10.0.0.5", "command": "volume", "operation": "delete"}, "get|set|auto"},
		{"unknown kind", domain.JobKind("reboot_moon"), map[string]any{}, "unsupported job kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &fakeLocal{}
			exec := NewExecutor(local)

			_, err := exec.Execute(context.Background(), job(tt.kind, tt.payload))
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected error containing %q, got %v", tt.wantMsg, err)
			}
			if len(local.actions) != 0 || len(local.probedIPs) != 0 {
				t.Errorf("local backend must not be called on validation failure")
			}
		})
	}
}

func TestExecuteNilPayload(t *testing.T) {
	exec := NewExecutor(&fakeLocal{})
	_, err := exec.Execute(context.Background(), job(domain.KindProbe, nil))
	if err == nil {
		t.Fatal("expected validation error for nil payload")
	}
}
