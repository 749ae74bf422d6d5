package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hazyhaar/bucketlist/pkg/trace"
)

// Action captures one mutating operation for the audit trail. Call it at the
// start of the operation and invoke the returned func with the outcome once
// the operation finishes; the entry is written asynchronously. The request
// correlation ID, when present in ctx, is recorded alongside the entry.
//
//	done := audit.Action(ctx, log, "rate_tradition", "http", userID, req)
//	...
//	done(result, err)
func Action(ctx context.Context, logger Logger, action, transport, userID string, params any) func(result any, err error) {
	if logger == nil {
		return func(any, error) {}
	}
	start := time.Now()
	entry := &Entry{
		Action:    action,
		Transport: transport,
		UserID:    userID,
		RequestID: trace.FromContext(ctx),
	}
	if data, e := json.Marshal(params); e == nil {
		entry.Parameters = string(data)
	}
	return func(result any, err error) {
		entry.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			entry.Error = err.Error()
			entry.Status = "error"
		} else {
			entry.Status = "success"
			if data, e := json.Marshal(result); e == nil {
				entry.Result = string(data)
			}
		}
		logger.LogAsync(entry)
	}
}
