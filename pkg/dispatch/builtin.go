package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/template"
)

var (
	ErrMissingMessage    = errors.New("notify action requires a 'message' config value")
	ErrMissingCollection = errors.New("record-write action requires a 'collection' config value")
	ErrMissingDeviceID   = errors.New("device-control action requires a 'device_id' config value")
	ErrMissingCommand    = errors.New("device-control action requires a 'command' config value")
)

func notifyHandler(logger *slog.Logger, notifier Notifier) Handler {
	return func(ctx context.Context, config map[string]any, runCtx *models.RunContext) error {
		message, ok := config["message"].(string)
		if !ok || message == "" {
			return ErrMissingMessage
		}

		message = template.Interpolate(message, runCtx)

		data, _ := template.InterpolateStructure(config["data"], runCtx).(map[string]any)

		if notifier == nil {
			logger.InfoContext(ctx, "Notification (no channel configured)", "message", message)

			return nil
		}

		return notifier.Notify(ctx, message, data)
	}
}

func externalCallHandler(caller ExternalCaller) Handler {
	return func(ctx context.Context, config map[string]any, runCtx *models.RunContext) error {
		if caller == nil {
			return nil
		}

		// Outbound payloads see the fully interpolated config, nested values
		// included.
		resolved, _ := template.InterpolateStructure(config, runCtx).(map[string]any)

		return caller.Call(ctx, resolved)
	}
}

func recordWriteHandler(writer RecordWriter) Handler {
	return func(ctx context.Context, config map[string]any, runCtx *models.RunContext) error {
		collection, ok := config["collection"].(string)
		if !ok || collection == "" {
			return ErrMissingCollection
		}

		record, _ := template.InterpolateStructure(config["record"], runCtx).(map[string]any)
		if record == nil {
			record = map[string]any{}
		}

		if writer == nil {
			return nil
		}

		return writer.Write(ctx, collection, record)
	}
}

func deviceControlHandler(controller DeviceController) Handler {
	return func(ctx context.Context, config map[string]any, runCtx *models.RunContext) error {
		resolved, _ := template.InterpolateStructure(config, runCtx).(map[string]any)

		deviceID, ok := resolved["device_id"].(string)
		if !ok || deviceID == "" {
			return ErrMissingDeviceID
		}

		command, ok := resolved["command"].(string)
		if !ok || command == "" {
			return ErrMissingCommand
		}

		params, _ := resolved["params"].(map[string]any)

		if controller == nil {
			return nil
		}

		return controller.SendCommand(ctx, deviceID, command, params)
	}
}
