package worker

import (
	"context"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"wanworker/internal/worker/processor"
)

// Event is the invocation payload of the Lambda runtime.
type Event struct {
	ID    string         `json:"id"`
	Input map[string]any `json:"input"`
}

// LambdaHandler adapts h for lambda.Start. Job failures are reported in
// the returned mapping, never as a Lambda error, so the platform does
// not retry them.
func LambdaHandler(h JobHandler) func(ctx context.Context, ev Event) (map[string]any, error) {
	return func(ctx context.Context, ev Event) (map[string]any, error) {
		id := ev.ID
		if id == "" {
			if lc, ok := lambdacontext.FromContext(ctx); ok {
				id = lc.AwsRequestID
			}
		}
		return h.Handle(ctx, processor.Job{ID: id, Input: ev.Input}).ToMap(), nil
	}
}
