/*
Package tracing provides lightweight request tracing.

Every HTTP request and every gateway request gets a span. Spans carry a
trace id that is continued from the X-Trace-ID/X-Span-ID request headers
when present and minted otherwise. Finished spans are logged through zap
by a background collector: failures at warn level, the rest at debug.

	tracer := tracing.New("guesthost", logger)
	defer tracer.Close()
	router.Use(tracing.Middleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "attach-guest")
	span.SetTag("guest_id", "12")
	tracer.Finish(span, "ok", nil)

A nil *Tracer is valid and records nothing.
*/
package tracing
