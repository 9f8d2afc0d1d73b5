package builtin

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/oakmund/hearth/internal/capability"
)

// volumeController abstracts the platform mixer so handlers are testable.
type volumeController interface {
	Get(ctx context.Context) (level int, muted bool, err error)
	Set(ctx context.Context, level int) error
}

// Volume returns the get/set device-volume capabilities. ctrl may be nil, in
// which case the platform default (osascript on macOS, amixer elsewhere) is
// used.
func Volume(ctrl volumeController) []capability.Capability {
	if ctrl == nil {
		ctrl = platformController()
	}
	get := capability.Capability{
		Definition: definition(
			"get_device_volume",
			"Get the current device speaker volume and mute status.",
			objectSchema(map[string]any{}),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			level, muted, err := ctrl.Get(ctx)
			if err != nil {
				return "", fmt.Errorf("get volume: %w", err)
			}
			if muted {
				return fmt.Sprintf("Device volume is muted (level set to %d%%)", level), nil
			}
			return fmt.Sprintf("Device volume is at %d%%", level), nil
		},
	}
	set := capability.Capability{
		Definition: definition(
			"set_device_volume",
			"Set the device speaker volume. Use this for system/device volume, not music volume.",
			objectSchema(map[string]any{
				"volume": map[string]any{
					"type":        "integer",
					"description": "Volume level from 0 to 100",
					"minimum":     0,
					"maximum":     100,
				},
			}, "volume"),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Volume int `json:"volume"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}
			if in.Volume < 0 || in.Volume > 100 {
				return "", fmt.Errorf("volume %d out of range 0-100", in.Volume)
			}
			if err := ctrl.Set(ctx, in.Volume); err != nil {
				return "", fmt.Errorf("set volume: %w", err)
			}
			if in.Volume == 0 {
				return "Device volume set to 0% (silent)", nil
			}
			return fmt.Sprintf("Device volume set to %d%%", in.Volume), nil
		},
	}
	return []capability.Capability{get, set}
}

func platformController() volumeController {
	if runtime.GOOS == "darwin" {
		return osascriptController{}
	}
	return amixerController{}
}

// ─── macOS ───

type osascriptController struct{}

var osaVolumeRe = regexp.MustCompile(`output volume:(\d+).*output muted:(true|false)`)

func (osascriptController) Get(ctx context.Context) (int, bool, error) {
	out, err := exec.CommandContext(ctx, "osascript", "-e", "get volume settings").Output()
	if err != nil {
		return 0, false, err
	}
	m := osaVolumeRe.FindStringSubmatch(string(out))
	if m == nil {
		return 0, false, fmt.Errorf("unexpected osascript output %q", strings.TrimSpace(string(out)))
	}
	level, _ := strconv.Atoi(m[1])
	return level, m[2] == "true", nil
}

func (osascriptController) Set(ctx context.Context, level int) error {
	script := fmt.Sprintf("set volume output volume %d", level)
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}

// ─── Linux (ALSA) ───

type amixerController struct{}

var amixerRe = regexp.MustCompile(`\[(\d+)%\]\s*\[(on|off)\]`)

func (amixerController) Get(ctx context.Context) (int, bool, error) {
	out, err := exec.CommandContext(ctx, "amixer", "get", "Master").Output()
	if err != nil {
		return 0, false, err
	}
	m := amixerRe.FindStringSubmatch(string(out))
	if m == nil {
		return 0, false, fmt.Errorf("unexpected amixer output")
	}
	level, _ := strconv.Atoi(m[1])
	return level, m[2] == "off", nil
}

func (amixerController) Set(ctx context.Context, level int) error {
	return exec.CommandContext(ctx, "amixer", "set", "Master", fmt.Sprintf("%d%%", level)).Run()
}
