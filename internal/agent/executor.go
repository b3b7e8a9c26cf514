package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"signage.relay/internal/core/domain"
	"signage.relay/internal/core/ports"
)

const (
	defaultMDCPort   = 1515
	defaultDisplayID = 0
	defaultProtocol  = "AUTO"
)

// Executor turns a dispatched job into the matching local backend call.
// The kind set is closed; anything else fails the job without touching
// hardware. Validation failures are execution errors, reported back as a
// failed job, never retried.
type Executor struct {
	local ports.LocalExecutor
}

func NewExecutor(local ports.LocalExecutor) *Executor {
	return &Executor{local: local}
}

func (e *Executor) Execute(ctx context.Context, job *domain.Job) (map[string]any, error) {
	payload := job.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	switch job.Kind {
	case domain.KindDeviceAction:
		action := strings.TrimSpace(stringField(payload, "action", ""))
		inner, ok := payload["payload"].(map[string]any)
		if action == "" || !ok {
			return nil, fmt.Errorf("device_action payload requires action and payload object")
		}
		return e.local.DeviceAction(ctx, action, inner)

	case domain.KindProbe:
		ip, err := targetIP(payload, job.Kind)
		if err != nil {
			return nil, err
		}
		return e.local.AutoProbe(ctx, ip)

	case domain.KindTV:
		target, err := deviceTarget(payload, job.Kind)
		if err != nil {
			return nil, err
		}
		state, err := powerState(stringField(payload, "command", ""))
		if err != nil {
			return nil, err
		}
		target["state"] = state
		return e.local.DeviceAction(ctx, "power", target)

	case domain.KindTest:
		target, err := deviceTarget(payload, job.Kind)
		if err != nil {
			return nil, err
		}
		return e.local.DeviceAction(ctx, "status", target)

	case domain.KindMDCExecute:
		target, err := deviceTarget(payload, job.Kind)
		if err != nil {
			return nil, err
		}
		command := strings.TrimSpace(stringField(payload, "command", ""))
		if command == "" {
			return nil, fmt.Errorf("mdc_execute payload requires command")
		}

		args, err := argList(payload)
		if err != nil {
			return nil, err
		}

		action, err := mdcAction(stringField(payload, "operation", "auto"), args)
		if err != nil {
			return nil, err
		}

		target["command"] = command
		target["args"] = args
		return e.local.DeviceAction(ctx, action, target)
	}

	return nil, fmt.Errorf("unsupported job kind: %s", job.Kind)
}

// deviceTarget builds the addressing block shared by the tv, test and
// mdc_execute kinds.
func deviceTarget(payload map[string]any, kind domain.JobKind) (map[string]any, error) {
	ip, err := targetIP(payload, kind)
	if err != nil {
		return nil, err
	}
	port, err := intField(payload, "port", defaultMDCPort)
	if err != nil {
		return nil, err
	}
	displayID, err := intField(payload, "display_id", defaultDisplayID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"tv_ip":      ip,
		"ip":         ip,
		"port":       port,
		"display_id": displayID,
		"protocol":   valueOr(payload, "protocol", defaultProtocol),
	}, nil
}

// targetIP accepts tv_ip as a legacy alias of ip.
func targetIP(payload map[string]any, kind domain.JobKind) (string, error) {
	ip := strings.TrimSpace(stringField(payload, "tv_ip", ""))
	if ip == "" {
		ip = strings.TrimSpace(stringField(payload, "ip", ""))
	}
	if ip == "" {
		return "", fmt.Errorf("%s payload requires tv_ip (or ip)", kind)
	}
	return ip, nil
}

func powerState(command string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(command)) {
	case "on":
		return "ON", nil
	case "off":
		return "OFF", nil
	case "reboot":
		return "REBOOT", nil
	}
	return "", fmt.Errorf("tv payload command must be on|off|reboot")
}

// mdcAction selects the CLI call. "auto" treats presence of args as a set.
func mdcAction(operation string, args []any) (string, error) {
	switch strings.ToLower(strings.TrimSpace(operation)) {
	case "get":
		return "cli_get", nil
	case "set":
		return "cli_set", nil
	case "auto":
		if len(args) > 0 {
			return "cli_set", nil
		}
		return "cli_get", nil
	}
	return "", fmt.Errorf("mdc_execute operation must be get|set|auto")
}

func argList(payload map[string]any) ([]any, error) {
	raw, ok := payload["args"]
	if !ok || raw == nil {
		return []any{}, nil
	}
	args, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("mdc_execute args must be an array")
	}
	return args, nil
}

func stringField(payload map[string]any, key, def string) string {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return def
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprint(raw)
}

// intField coerces JSON numbers and numeric strings the way the historical
// payloads arrive (decoded numbers come through as float64).
func intField(payload map[string]any, key string, def int) (int, error) {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%s must be an integer", key)
}

func valueOr(payload map[string]any, key string, def any) any {
	if raw, ok := payload[key]; ok && raw != nil {
		return raw
	}
	return def
}
