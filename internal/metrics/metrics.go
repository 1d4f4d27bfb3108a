package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service-level counters plus the database collectors.
type Metrics struct {
	Database *DatabaseMetrics

	studentsCreated metric.Int64Counter
	studentsUpdated metric.Int64Counter
	studentsDeleted metric.Int64Counter
	studentsViewed  metric.Int64Counter
	listsViewed     metric.Int64Counter
	searchesRun     metric.Int64Counter
	eventsPublished metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.Database, err = NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.studentsCreated, err = meter.Int64Counter(
		"student_registry.students.created",
		metric.WithDescription("Total number of students created"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsUpdated, err = meter.Int64Counter(
		"student_registry.students.updated",
		metric.WithDescription("Total number of students updated"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsDeleted, err = meter.Int64Counter(
		"student_registry.students.deleted",
		metric.WithDescription("Total number of students deleted"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsViewed, err = meter.Int64Counter(
		"student_registry.students.viewed",
		metric.WithDescription("Total number of single-student reads"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.listsViewed, err = meter.Int64Counter(
		"student_registry.students.list_viewed",
		metric.WithDescription("Total number of list/query reads"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.searchesRun, err = meter.Int64Counter(
		"student_registry.students.searches",
		metric.WithDescription("Total number of keyword searches"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, err
	}

	m.eventsPublished, err = meter.Int64Counter(
		"student_registry.events.published",
		metric.WithDescription("Total number of lifecycle events published"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordStudentCreated(ctx context.Context) {
	if m != nil && m.studentsCreated != nil {
		m.studentsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentUpdated(ctx context.Context) {
	if m != nil && m.studentsUpdated != nil {
		m.studentsUpdated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentDeleted(ctx context.Context, count int64) {
	if m != nil && m.studentsDeleted != nil {
		m.studentsDeleted.Add(ctx, count)
	}
}

func (m *Metrics) RecordStudentViewed(ctx context.Context) {
	if m != nil && m.studentsViewed != nil {
		m.studentsViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordListViewed(ctx context.Context) {
	if m != nil && m.listsViewed != nil {
		m.listsViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordSearch(ctx context.Context) {
	if m != nil && m.searchesRun != nil {
		m.searchesRun.Add(ctx, 1)
	}
}

func (m *Metrics) RecordEventPublished(ctx context.Context) {
	if m != nil && m.eventsPublished != nil {
		m.eventsPublished.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{}
}
