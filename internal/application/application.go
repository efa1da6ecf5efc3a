package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const spanPrefix = "UC."

// Instruments bundles the tracer, base logger and RED metrics a service reports use cases with.
type Instruments struct {
	tracer       observability.Tracer
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	tracer, logger, metrics := observability.Resolve(tel)
	return Instruments{
		tracer:       tracer,
		log:          logger.With(observability.F("service", service)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Logger returns the service logger, preferring the request-scoped one in ctx.
func (in Instruments) Logger(ctx context.Context) observability.Logger {
	return logctx.FromOr(ctx, in.log)
}

// Run tracks one use case execution. Callers set Outcome/Status on failure paths and
// defer End with the returned error; End closes the span, records metrics and writes
// the single use_case_done log line.
type Run struct {
	in      Instruments
	useCase string
	span    trace.Span
	start   time.Time
	logger  observability.Logger
	fields  []observability.Field

	traceFields []observability.Field

	Outcome string
	Status  string
}

func (in Instruments) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	return ctx, &Run{
		in:      in,
		useCase: useCase,
		span:    span,
		start:   time.Now(),
		logger:  logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase)),
		Outcome: "success",
		Status:  "OK",

		traceFields: logctx.TraceFields(ctx),
	}
}

// Fail marks the run as failed with an UPPER_SNAKE status code.
func (r *Run) Fail(status string) {
	r.Outcome, r.Status = "error", status
}

// With adds fields to the final log line.
func (r *Run) With(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

func (r *Run) Logger() observability.Logger { return r.logger }

func (r *Run) Span() trace.Span { return r.span }

func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.Outcome == "success" {
		r.Fail("ERROR")
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.Status)
		} else {
			r.span.SetStatus(codes.Ok, r.Status)
		}
		r.span.End()
	}

	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.Outcome),
	)
	r.in.durHistogram.Observe(lat,
		observability.L("use_case", r.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", r.Outcome),
		observability.F("status", r.Status),
		observability.F("latency_seconds", lat),
	}
	fields = append(fields, r.traceFields...)
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	r.logger.Info("use_case_done", fields...)
}

// External records a call to a dependency (peer) in the external request metrics.
func (in Instruments) External(peer, endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}
