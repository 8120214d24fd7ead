package zomecall

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"hchttp/gateway/pkg/apppool"
	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/directory"
	"hchttp/gateway/pkg/gwerrors"
	"hchttp/gateway/pkg/telemetry/logging"
	"hchttp/gateway/pkg/telemetry/metrics"
	"hchttp/gateway/pkg/transcode"
)

// Dispatcher runs validated zome calls.
type Dispatcher struct {
	resolver *directory.Resolver
	pool     *apppool.Pool
	timeout  time.Duration
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. Each zome call is bounded by timeout.
func NewDispatcher(resolver *directory.Resolver, pool *apppool.Pool, timeout time.Duration, collector *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		pool:     pool,
		timeout:  timeout,
		metrics:  collector,
		logger:   slog.Default().With("component", "zomecall.dispatcher"),
	}
}

// Dispatch resolves the target of req, performs the call and returns its
// result as JSON.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (json.RawMessage, error) {
	ctx = logging.WithAppID(ctx, req.AppID)
	start := time.Now()

	out, err := d.dispatch(ctx, req)

	outcome := "success"
	if err != nil {
		outcome = gwerrors.KindOf(err).String()
	}
	d.metrics.RecordZomeCall(req.AppID, outcome, time.Since(start))
	return out, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (json.RawMessage, error) {
	rec, err := d.resolver.Resolve(ctx, req.TargetHash, req.AppID)
	if err != nil {
		return nil, err
	}
	if err := d.resolver.CheckFunction(req.AppID, req.ZomeName, req.FnName); err != nil {
		return nil, err
	}
	cellID, ok := rec.CellFor(req.TargetHash)
	if !ok {
		return nil, gwerrors.New(gwerrors.KindNotFound, "app %q has no cell for DNA %s", req.AppID, req.TargetHash)
	}

	payload, err := transcode.JSONToMsgpack(req.Payload)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindMalformedPayload, err, "payload cannot be encoded")
	}

	var result []byte
	err = d.pool.Call(ctx, rec, func(ctx context.Context, slot *apppool.Slot) error {
		signed, err := slot.Signer.SignZomeCall(cellID, req.ZomeName, req.FnName, payload)
		if err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		result, err = slot.Conn.CallZome(callCtx, signed)
		return err
	})
	if err != nil {
		return nil, classify(err, req)
	}

	out, err := transcode.MsgpackToJSON(result)
	if err != nil {
		return nil, gwerrors.Conductor(err, "zome call returned an undecodable result")
	}
	return out, nil
}

// classify maps a zome call failure onto the error taxonomy. Errors raised by
// the zome keep their message; everything else is a conductor error.
func classify(err error, req *Request) error {
	if conductor.IsRibosomeError(err) {
		var apiErr *conductor.APIError
		errors.As(err, &apiErr)
		return gwerrors.Wrap(gwerrors.KindZome, err, "%s", apiErr.Message)
	}

	var gwErr *gwerrors.Error
	if errors.As(err, &gwErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return gwerrors.Conductor(err, "zome call %s/%s timed out", req.ZomeName, req.FnName)
	}
	return gwerrors.Conductor(err, "zome call %s/%s failed", req.ZomeName, req.FnName)
}
