package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const hdmiCecFeature = "feature:android.hardware.hdmi.cec"

// AdbDevice controls the device under test through the adb CLI. It is the
// stimulus side of a compliance run; the harness only ever consumes its
// readiness signal.
type AdbDevice struct {
	adb    string
	serial string
}

func NewAdbDevice(serial string) *AdbDevice {
	return NewAdbDeviceWithPath("adb", serial)
}

func NewAdbDeviceWithPath(adb, serial string) *AdbDevice {
	return &AdbDevice{adb: adb, serial: serial}
}

func (d *AdbDevice) shell(ctx context.Context, args ...string) (string, error) {
	full := []string{}
	if d.serial != "" {
		full = append(full, "-s", d.serial)
	}
	full = append(full, "shell")
	full = append(full, args...)
	cmd := exec.CommandContext(ctx, d.adb, full...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("adb shell %s: %w (output: %s)", strings.Join(args, " "), err, string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

func (d *AdbDevice) Reboot(ctx context.Context) error {
	slog.Info("Rebooting device", "serial", d.serial)
	if _, err := d.shell(ctx, "reboot"); err != nil {
		return err
	}
	return nil
}

// WaitForReady polls sys.boot_completed until the device reports a finished
// boot or the timeout passes. Device readiness is a shell-level property, so
// polling is the only option here; bus expectations never poll.
func (d *AdbDevice) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if out, err := d.shell(ctx, "getprop", "sys.boot_completed"); err == nil && out == "1" {
			slog.Info("Device ready", "serial", d.serial)
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("device not ready after %v: %w", timeout, ctx.Err())
		}
	}
}

func (d *AdbDevice) SendKeyEvent(ctx context.Context, keycode int) error {
	_, err := d.shell(ctx, "input", "keyevent", strconv.Itoa(keycode))
	return err
}

// HasHdmiCec reports whether the device declares the HDMI-CEC feature;
// compliance tests skip devices that do not.
func (d *AdbDevice) HasHdmiCec(ctx context.Context) (bool, error) {
	out, err := d.shell(ctx, "pm", "list", "features")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == hdmiCecFeature {
			return true, nil
		}
	}
	return false, nil
}
