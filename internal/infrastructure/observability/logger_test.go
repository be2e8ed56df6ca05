package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestInitLoggerTo_Production(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, "medsearch", "production")

	LoggerFromContext(context.Background()).Info().Msg("started")
	LoggerFromContext(context.Background()).Debug().Msg("hidden")

	assert.Contains(t, buf.String(), `"service":"medsearch"`)
	assert.Contains(t, buf.String(), `"message":"started"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLoggerFromContext_UsesRequestLogger(t *testing.T) {
	InitLoggerTo(&bytes.Buffer{}, "medsearch", "production")

	var buf bytes.Buffer
	requestLogger := zerolog.New(&buf).With().Str("request_id", "req-1").Logger()
	ctx := requestLogger.WithContext(context.Background())

	LoggerFromContext(ctx).Info().Msg("search")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.NotContains(t, buf.String(), "trace_id")

	buf.Reset()
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x02},
		TraceFlags: trace.FlagsSampled,
	})
	LoggerFromContext(trace.ContextWithSpanContext(ctx, sc)).Info().Msg("search")
	assert.Contains(t, buf.String(), `"trace_id":"01000000000000000000000000000000"`)
	assert.Contains(t, buf.String(), `"span_id":"0200000000000000"`)
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}
