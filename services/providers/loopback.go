package providers

import (
	"context"
	"fmt"
	"time"
)

// loopbackCharsPerToken mirrors the router's prompt-size heuristic.
const loopbackCharsPerToken = 4

// CostFunc derives the actual cost of a loopback call from the model and
// token count. Wired from the model catalog's pricing at startup.
type CostFunc func(modelID string, tokens int) float64

// Loopback is a development invoker that answers locally without any
// network call. It lets the full pipeline (classification, selection,
// budget, recording) run end to end before real provider adapters are
// registered.
type Loopback struct {
	cost CostFunc
}

// NewLoopback creates a loopback invoker with the given cost function.
func NewLoopback(cost CostFunc) *Loopback {
	return &Loopback{cost: cost}
}

// Name implements Invoker.
func (l *Loopback) Name() string {
	return "loopback"
}

// Invoke implements Invoker.
func (l *Loopback) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewInvokerError(l.Name(), "cancelled", "invocation cancelled", false, err)
	}

	start := time.Now()
	tokens := len(req.Prompt) / loopbackCharsPerToken
	if tokens < 1 {
		tokens = 1
	}

	var actualCost float64
	if l.cost != nil {
		actualCost = l.cost(req.Model, tokens)
	}

	return &InvokeResult{
		Output:     fmt.Sprintf("[loopback:%s] %s", req.Model, req.Prompt),
		ActualCost: actualCost,
		TokensUsed: tokens,
		Latency:    time.Since(start),
	}, nil
}
