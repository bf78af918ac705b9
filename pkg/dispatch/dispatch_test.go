package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/models"
)

type recordingChannels struct {
	notifyMessage string
	notifyData    map[string]any

	callConfig map[string]any

	writeCollection string
	writeRecord     map[string]any

	deviceID  string
	command   string
	params    map[string]any
	deviceErr error
}

func (r *recordingChannels) Notify(_ context.Context, message string, data map[string]any) error {
	r.notifyMessage = message
	r.notifyData = data

	return nil
}

func (r *recordingChannels) Call(_ context.Context, config map[string]any) error {
	r.callConfig = config

	return nil
}

func (r *recordingChannels) Write(_ context.Context, collection string, record map[string]any) error {
	r.writeCollection = collection
	r.writeRecord = record

	return nil
}

func (r *recordingChannels) SendCommand(_ context.Context, deviceID, command string, params map[string]any) error {
	r.deviceID = deviceID
	r.command = command
	r.params = params

	return r.deviceErr
}

func newTestDispatcher(rec *recordingChannels) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewDispatcher(logger, Channels{
		Notifier:         rec,
		ExternalCaller:   rec,
		RecordWriter:     rec,
		DeviceController: rec,
	})
}

func runContext() *models.RunContext {
	return models.NewRunContext("run-1", "wf-1", map[string]any{
		"user": map[string]any{"name": "Ada"},
		"temp": 21.5,
	}, nil)
}

func TestDispatchNotifyInterpolatesMessage(t *testing.T) {
	rec := &recordingChannels{}
	d := newTestDispatcher(rec)

	node := &models.WorkflowNode{
		ID:   "n1",
		Kind: models.NodeKindAction,
		Config: map[string]any{
			"action_type": KindNotify,
			"message":     "Hello {{user.name}}",
			"data":        map[string]any{"temp": "{{temp}}"},
		},
	}

	dispatched, err := d.Dispatch(context.Background(), node, runContext())
	require.NoError(t, err)
	assert.True(t, dispatched)
	assert.Equal(t, "Hello Ada", rec.notifyMessage)
	assert.Equal(t, "21.5", rec.notifyData["temp"])
}

func TestDispatchNotifyMissingMessage(t *testing.T) {
	rec := &recordingChannels{}
	d := newTestDispatcher(rec)

	node := &models.WorkflowNode{
		ID:     "n1",
		Kind:   models.NodeKindAction,
		Config: map[string]any{"action_type": KindNotify},
	}

	_, err := d.Dispatch(context.Background(), node, runContext())
	require.Error(t, err)

	var actionErr *ActionError

	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "n1", actionErr.NodeID)
	assert.Equal(t, KindNotify, actionErr.Kind)
	assert.ErrorIs(t, err, ErrMissingMessage)
}

func TestDispatchExternalCallInterpolatesConfig(t *testing.T) {
	rec := &recordingChannels{}
	d := newTestDispatcher(rec)

	node := &models.WorkflowNode{
		ID:   "call",
		Kind: models.NodeKindAction,
		Config: map[string]any{
			"action_type": KindExternalCall,
			"url":         "https://api.example.com/users/{{user.name}}",
			"body":        map[string]any{"greeting": "hi {{user.name}}"},
		},
	}

	dispatched, err := d.Dispatch(context.Background(), node, runContext())
	require.NoError(t, err)
	assert.True(t, dispatched)
	assert.Equal(t, "https://api.example.com/users/Ada", rec.callConfig["url"])

	body, ok := rec.callConfig["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi Ada", body["greeting"])
}

func TestDispatchRecordWrite(t *testing.T) {
	rec := &recordingChannels{}
	d := newTestDispatcher(rec)

	node := &models.WorkflowNode{
		ID:   "rw",
		Kind: models.NodeKindAction,
		Config: map[string]any{
			"action_type": KindRecordWrite,
			"collection":  "readings",
			"record":      map[string]any{"value": "{{temp}}"},
		},
	}

	dispatched, err := d.Dispatch(context.Background(), node, runContext())
	require.NoError(t, err)
	assert.True(t, dispatched)
	assert.Equal(t, "readings", rec.writeCollection)
	assert.Equal(t, "21.5", rec.writeRecord["value"])
}

func TestDispatchDeviceControl(t *testing.T) {
	rec := &recordingChannels{}
	d := newTestDispatcher(rec)

	node := &models.WorkflowNode{
		ID:   "dc",
		Kind: models.NodeKindAction,
		Config: map[string]any{
			"action_type": KindDeviceControl,
			"device_id":   "thermostat-1",
			"command":     "set_temp",
			"params":      map[string]any{"target": "{{temp}}"},
		},
	}

	dispatched, err := d.Dispatch(context.Background(), node, runContext())
	require.NoError(t, err)
	assert.True(t, dispatched)
	assert.Equal(t, "thermostat-1", rec.deviceID)
	assert.Equal(t, "set_temp", rec.command)
	assert.Equal(t, "21.5", rec.params["target"])
}

func TestDispatchDeviceControlChannelFailure(t *testing.T) {
	rec := &recordingChannels{deviceErr: errors.New("device unreachable")}
	d := newTestDispatcher(rec)

	node := &models.WorkflowNode{
		ID:   "dc",
		Kind: models.NodeKindAction,
		Config: map[string]any{
			"action_type": KindDeviceControl,
			"device_id":   "lock-1",
			"command":     "open",
		},
	}

	_, err := d.Dispatch(context.Background(), node, runContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unreachable")
}

func TestDispatchUnknownKindIsNoOp(t *testing.T) {
	rec := &recordingChannels{}
	d := newTestDispatcher(rec)

	node := &models.WorkflowNode{
		ID:     "mystery",
		Kind:   models.NodeKindAction,
		Config: map[string]any{"action_type": "teleport"},
	}

	dispatched, err := d.Dispatch(context.Background(), node, runContext())
	require.NoError(t, err)
	assert.False(t, dispatched)
	assert.Empty(t, rec.notifyMessage)
	assert.Nil(t, rec.callConfig)
}

func TestDispatchCustomRegistration(t *testing.T) {
	rec := &recordingChannels{}
	d := newTestDispatcher(rec)

	invoked := false
	d.Register("custom", func(_ context.Context, _ map[string]any, _ *models.RunContext) error {
		invoked = true

		return nil
	})

	node := &models.WorkflowNode{
		ID:     "c",
		Kind:   models.NodeKindAction,
		Config: map[string]any{"action_type": "custom"},
	}

	dispatched, err := d.Dispatch(context.Background(), node, runContext())
	require.NoError(t, err)
	assert.True(t, dispatched)
	assert.True(t, invoked)
}
