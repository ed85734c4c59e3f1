package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedTracer(t *testing.T) (*Tracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))
	t.Cleanup(tracer.Close)
	return tracer, logs
}

func TestStartSpan(t *testing.T) {
	tracer, _ := newObservedTracer(t)

	root, ctx := tracer.StartSpan(context.Background(), "root")
	assert.NotEmpty(t, root.TraceID)
	assert.Empty(t, root.ParentID)
	assert.Equal(t, root.TraceID, TraceIDFrom(ctx))
	assert.Equal(t, root.SpanID, SpanIDFrom(ctx))

	child, _ := tracer.StartSpan(ctx, "child")
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.NotEqual(t, root.SpanID, child.SpanID)
}

func TestWithTrace(t *testing.T) {
	tracer, _ := newObservedTracer(t)

	ctx := WithTrace(context.Background(), "trace-1", "span-1")
	span, _ := tracer.StartSpan(ctx, "op")
	assert.Equal(t, TraceID("trace-1"), span.TraceID)
	assert.Equal(t, SpanID("span-1"), span.ParentID)

	assert.Equal(t, context.Background(), WithTrace(context.Background(), "", ""))
}

func TestFinishLogsSpans(t *testing.T) {
	tracer, logs := newObservedTracer(t)

	ok, _ := tracer.StartSpan(context.Background(), "ping")
	ok.SetTag("request_id", "r1")
	tracer.Finish(ok, "ok", nil)

	failed, _ := tracer.StartSpan(context.Background(), "attach-guest")
	tracer.Finish(failed, "NotFound", errors.New("no guest"))

	require.Eventually(t, func() bool { return logs.Len() == 2 }, time.Second, 5*time.Millisecond)

	entries := logs.All()
	assert.Equal(t, "Span completed", entries[0].Message)
	assert.Equal(t, "r1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "ping", entries[0].ContextMap()["operation"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "NotFound", entries[1].ContextMap()["status"])
}

func TestNilTracer(t *testing.T) {
	var tracer *Tracer

	assert.NotPanics(t, func() {
		span, ctx := tracer.StartSpan(context.Background(), "op")
		assert.Nil(t, span)
		assert.Equal(t, context.Background(), ctx)
		span.SetTag("k", "v")
		assert.Equal(t, "", span.Tag("k"))
		tracer.Finish(span, "ok", nil)
		tracer.Close()
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObservedTracer(t)

	var seen TraceID
	router := gin.New()
	router.Use(Middleware(tracer))
	router.GET("/guests/:id", func(c *gin.Context) {
		seen = TraceIDFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/guests/4", nil)
	req.Header.Set(HeaderTraceID, "inbound")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, TraceID("inbound"), seen)
	assert.Equal(t, "inbound", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))

	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	entry := logs.All()[0]
	assert.Equal(t, "GET /guests/:id", entry.ContextMap()["operation"])
	assert.Equal(t, "204", entry.ContextMap()["status"])
}
