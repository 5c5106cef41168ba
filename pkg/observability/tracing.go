package observability

import (
	"context"
	"errors"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every span started here.
const TracerName = "github.com/aretw0/playbook"

// TracedAuthority wraps a ports.Authority with one span per remote call.
type TracedAuthority struct {
	next   ports.Authority
	tracer trace.Tracer
}

// NewTracedAuthority wraps next. A nil tracer uses the global provider.
func NewTracedAuthority(next ports.Authority, tracer trace.Tracer) *TracedAuthority {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &TracedAuthority{next: next, tracer: tracer}
}

func (a *TracedAuthority) ResolveWorkflow(ctx context.Context, name string) (int, error) {
	ctx, span := a.tracer.Start(ctx, "authority.resolve_workflow",
		trace.WithAttributes(attribute.String("playbook.workflow", name)))
	defer span.End()

	id, err := a.next.ResolveWorkflow(ctx, name)
	record(span, err)
	span.SetAttributes(attribute.Int("playbook.workflow_id", id))
	return id, err
}

func (a *TracedAuthority) FetchQuestions(ctx context.Context, workflowID int) ([]domain.QuestionRecord, error) {
	ctx, span := a.tracer.Start(ctx, "authority.fetch_questions",
		trace.WithAttributes(attribute.Int("playbook.workflow_id", workflowID)))
	defer span.End()

	records, err := a.next.FetchQuestions(ctx, workflowID)
	record(span, err)
	span.SetAttributes(attribute.Int("playbook.questions", len(records)))
	return records, err
}

func (a *TracedAuthority) FetchPriorAnswers(ctx context.Context, workflowID int, incident string) ([]domain.PriorAnswer, error) {
	ctx, span := a.tracer.Start(ctx, "authority.fetch_prior_answers",
		trace.WithAttributes(
			attribute.Int("playbook.workflow_id", workflowID),
			attribute.String("playbook.incident", incident),
		))
	defer span.End()

	prior, err := a.next.FetchPriorAnswers(ctx, workflowID, incident)
	// An incident without history is the fresh-run path, not a failure.
	if !errors.Is(err, domain.ErrPriorAnswersNotFound) {
		record(span, err)
	}
	span.SetAttributes(attribute.Int("playbook.prior_answers", len(prior)))
	return prior, err
}

func (a *TracedAuthority) SubmitAnswer(ctx context.Context, rec domain.AnswerRecord) (domain.Ack, error) {
	ctx, span := a.tracer.Start(ctx, "authority.submit_answer",
		trace.WithAttributes(
			attribute.Int("playbook.workflow_id", rec.WorkflowID),
			attribute.String("playbook.incident", rec.IncidentNumber),
			attribute.Int("playbook.question_id", rec.QuestionID),
			attribute.Bool("playbook.skipped", rec.IsSkipped),
		))
	defer span.End()

	ack, err := a.next.SubmitAnswer(ctx, rec)
	record(span, err)
	return ack, err
}

// TracingHooks records engine events on the span active in the hook context.
func TracingHooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			trace.SpanFromContext(ctx).AddEvent(string(e.Type), trace.WithAttributes(
				attribute.Int("playbook.question_id", e.QuestionID),
				attribute.String("playbook.question_type", string(e.QuestionType)),
			))
		},
		OnDanglingBranch: func(ctx context.Context, e *domain.BranchEvent) {
			trace.SpanFromContext(ctx).AddEvent(string(e.Type), trace.WithAttributes(
				attribute.Int("playbook.from_id", e.FromID),
				attribute.Int("playbook.dangling_id", e.DanglingID),
			))
		},
		OnSnapshotFailed: func(ctx context.Context, e *domain.SnapshotEvent) {
			trace.SpanFromContext(ctx).RecordError(e.Err, trace.WithAttributes(
				attribute.String("playbook.event", string(e.Type)),
				attribute.Int("playbook.question_id", e.QuestionID),
			))
		},
		OnRunComplete: func(ctx context.Context, e *domain.EventBase) {
			trace.SpanFromContext(ctx).AddEvent(string(e.Type))
		},
	}
}

func record(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
