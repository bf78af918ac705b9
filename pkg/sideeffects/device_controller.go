package sideeffects

import (
	"context"
	"log/slog"
)

// LogDeviceController records device commands in the log instead of sending
// them anywhere. Used when no device gateway is configured.
type LogDeviceController struct {
	logger *slog.Logger
}

func NewLogDeviceController(logger *slog.Logger) *LogDeviceController {
	return &LogDeviceController{logger: logger.With("module", "device_controller")}
}

func (c *LogDeviceController) SendCommand(ctx context.Context, deviceID, command string, params map[string]any) error {
	c.logger.InfoContext(ctx, "Device command",
		"device_id", deviceID,
		"command", command,
		"params", params)

	return nil
}
