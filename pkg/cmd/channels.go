package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/flowgrid/flowgrid/pkg/dispatch"
	"github.com/flowgrid/flowgrid/pkg/sideeffects"
)

// NewChannels assembles the side-effect channels from the environment.
// Notifications go to Redis when REDIS_ADDR is set, otherwise to the log;
// records land under recordsDir as JSONL files.
func NewChannels(ctx context.Context, logger *slog.Logger, recordsDir string) (dispatch.Channels, error) {
	channels := dispatch.Channels{
		ExternalCaller:   sideeffects.NewHTTPCaller(logger),
		DeviceController: sideeffects.NewLogDeviceController(logger),
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		notifier, err := sideeffects.NewRedisNotifier(ctx, addr,
			os.Getenv("REDIS_PASSWORD"), os.Getenv("NOTIFY_CHANNEL"), 0)
		if err != nil {
			return dispatch.Channels{}, err
		}

		channels.Notifier = notifier
	} else {
		channels.Notifier = sideeffects.NewLogNotifier(logger)
	}

	if recordsDir != "" {
		writer, err := sideeffects.NewFileRecordWriter(recordsDir)
		if err != nil {
			return dispatch.Channels{}, err
		}

		channels.RecordWriter = writer
	}

	return channels, nil
}
