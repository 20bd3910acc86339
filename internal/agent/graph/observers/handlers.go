package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/chative-genui/server/pkg/logger"
)

// NewAllCallbacks returns the observer handlers (model, prompt, node timing) to attach
// with compose.WithCallbacks.
func NewAllCallbacks() []einocb.Handler {
	typed := callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
	return []einocb.Handler{typed, newNodeHandler()}
}

type startKey struct{}

// newNodeHandler logs every graph component's duration and failures.
func newNodeHandler() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			return context.WithValue(ctx, startKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			ev := logx.Debug().Str("node", info.Name).Str("component", string(info.Component))
			if start, ok := ctx.Value(startKey{}).(time.Time); ok {
				ev = ev.Dur("took", time.Since(start))
			}
			ev.Msg("Node finished")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("node", info.Name).Str("component", string(info.Component)).Msg("Node failed")
			return ctx
		}).
		Build()
}
