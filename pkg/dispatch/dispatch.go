// Package dispatch maps action nodes onto side-effect channels. The
// dispatcher owns the kind registry; the channels own the actual I/O, so the
// engine stays testable with stub channels.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// Action kinds understood by the built-in registry.
const (
	KindNotify        = "notify"
	KindExternalCall  = "external-call"
	KindRecordWrite   = "record-write"
	KindDeviceControl = "device-control"
)

// Notifier delivers a human-facing message to some notification medium.
type Notifier interface {
	Notify(ctx context.Context, message string, data map[string]any) error
}

// ExternalCaller performs an outbound call described by an already
// interpolated config.
type ExternalCaller interface {
	Call(ctx context.Context, config map[string]any) error
}

// RecordWriter appends a record to a named collection.
type RecordWriter interface {
	Write(ctx context.Context, collection string, record map[string]any) error
}

// DeviceController sends a command to a device.
type DeviceController interface {
	SendCommand(ctx context.Context, deviceID, command string, params map[string]any) error
}

// Channels bundles the side-effect implementations the built-in handlers
// delegate to. Nil members are allowed; the corresponding handler then
// degrades to a logged no-op.
type Channels struct {
	Notifier         Notifier
	ExternalCaller   ExternalCaller
	RecordWriter     RecordWriter
	DeviceController DeviceController
}

// Handler executes one action kind against the run context.
type Handler func(ctx context.Context, config map[string]any, runCtx *models.RunContext) error

// Dispatcher routes an action node to the handler registered for its kind.
type Dispatcher struct {
	logger   *slog.Logger
	handlers map[string]Handler
}

// NewDispatcher builds a dispatcher with the four built-in kinds registered.
func NewDispatcher(logger *slog.Logger, channels Channels) *Dispatcher {
	d := &Dispatcher{
		logger:   logger.With("module", "dispatch"),
		handlers: make(map[string]Handler),
	}

	d.Register(KindNotify, notifyHandler(logger, channels.Notifier))
	d.Register(KindExternalCall, externalCallHandler(channels.ExternalCaller))
	d.Register(KindRecordWrite, recordWriteHandler(channels.RecordWriter))
	d.Register(KindDeviceControl, deviceControlHandler(channels.DeviceController))

	return d
}

// Register installs a handler for an action kind, replacing any previous one.
func (d *Dispatcher) Register(kind string, handler Handler) {
	d.handlers[kind] = handler
}

// Dispatch executes the action node. An unregistered kind is not an error:
// the node is logged and skipped so that a workflow authored against a newer
// registry still runs; the returned bool reports whether a handler actually
// ran so callers can surface the skip. Handler failures come back wrapped in
// *ActionError.
func (d *Dispatcher) Dispatch(ctx context.Context, node *models.WorkflowNode, runCtx *models.RunContext) (bool, error) {
	kind := node.ConfigString("action_type", "")

	handler, ok := d.handlers[kind]
	if !ok {
		d.logger.WarnContext(ctx, "Unknown action kind, skipping node",
			"workflow_id", runCtx.WorkflowID,
			"run_id", runCtx.RunID,
			"node_id", node.ID,
			"action_type", kind)

		return false, nil
	}

	if err := handler(ctx, node.Config, runCtx); err != nil {
		return true, &ActionError{NodeID: node.ID, Kind: kind, Err: err}
	}

	return true, nil
}
