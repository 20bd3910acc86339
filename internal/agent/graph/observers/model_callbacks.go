package observers

import (
	"context"
	"errors"
	"io"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/chative-genui/server/pkg/logger"
)

// newModelHandler builds a typed ModelCallbackHandler to log user/assistant messages around model calls.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Debug().Str("node", info.Name).Str("type", info.Type)
			if input != nil {
				ev = ev.Int("messages", len(input.Messages)).Int("tools", len(input.Tools))
				if um := lastUserContent(input.Messages); um != "" {
					ev = ev.Str("user", truncate(um, 200))
				}
			}
			ev.Msg("Model start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			if output != nil {
				logMessage(info, output.Message)
			}
			return ctx
		},
		OnEndWithStreamOutput: func(ctx context.Context, info *einocb.RunInfo, output *schema.StreamReader[*model.CallbackOutput]) context.Context {
			// The stream is a copy; it must be drained and closed.
			go func() {
				defer output.Close()
				var (
					text  strings.Builder
					calls int
				)
				for {
					chunk, err := output.Recv()
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						return
					}
					if chunk != nil && chunk.Message != nil {
						text.WriteString(chunk.Message.Content)
						calls += len(chunk.Message.ToolCalls)
					}
				}
				logx.Debug().
					Str("node", info.Name).
					Str("assistant", truncate(strings.TrimSpace(text.String()), 200)).
					Int("tool_call_chunks", calls).
					Msg("Model stream end")
			}()
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("node", info.Name).Str("type", info.Type).Msg("Model error")
			return ctx
		},
	}
}

func logMessage(info *einocb.RunInfo, m *schema.Message) {
	if m == nil {
		return
	}
	logx.Debug().
		Str("node", info.Name).
		Str("assistant", truncate(strings.TrimSpace(m.Content), 200)).
		Int("tool_calls", len(m.ToolCalls)).
		Msg("Model end")
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
