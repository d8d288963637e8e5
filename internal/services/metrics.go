package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"contactcli/internal/dataprocessing"
)

// Metrics holds the instruments recorded for every processed file.
type Metrics struct {
	filesProcessed  metric.Int64Counter
	rowsRead        metric.Int64Counter
	rowsWritten     metric.Int64Counter
	rowsRemoved     metric.Int64Counter
	companiesFilled metric.Int64Counter
	fileDuration    metric.Float64Histogram
}

// NewMetrics creates the contact pipeline instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.filesProcessed, err = meter.Int64Counter("contacts_files_processed",
		metric.WithDescription("Contact files processed, by outcome and error kind")); err != nil {
		return nil, fmt.Errorf("files processed counter: %w", err)
	}
	if m.rowsRead, err = meter.Int64Counter("contacts_rows_read",
		metric.WithDescription("Rows loaded from contact files")); err != nil {
		return nil, fmt.Errorf("rows read counter: %w", err)
	}
	if m.rowsWritten, err = meter.Int64Counter("contacts_rows_written",
		metric.WithDescription("Rows written to cleaned outputs")); err != nil {
		return nil, fmt.Errorf("rows written counter: %w", err)
	}
	if m.rowsRemoved, err = meter.Int64Counter("contacts_rows_removed",
		metric.WithDescription("Rows removed, by cleaning stage")); err != nil {
		return nil, fmt.Errorf("rows removed counter: %w", err)
	}
	if m.companiesFilled, err = meter.Int64Counter("contacts_companies_backfilled",
		metric.WithDescription("Company values derived from email domains")); err != nil {
		return nil, fmt.Errorf("companies counter: %w", err)
	}
	if m.fileDuration, err = meter.Float64Histogram("contacts_file_duration_seconds",
		metric.WithDescription("Time to process one contact file"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("duration histogram: %w", err)
	}

	return &m, nil
}

// NoopMetrics returns instruments that record nothing.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

// RecordFile records the outcome of one pipeline run.
func (m *Metrics) RecordFile(ctx context.Context, stats *dataprocessing.Stats, kind dataprocessing.Kind, elapsed time.Duration) {
	if m == nil {
		return
	}

	outcome := "success"
	if kind != "" {
		outcome = "failed"
	}
	m.filesProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("kind", string(kind)),
	))
	m.fileDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))

	if stats == nil {
		return
	}
	m.rowsRead.Add(ctx, int64(stats.InitialRows))
	m.rowsWritten.Add(ctx, int64(stats.FinalRows))
	m.companiesFilled.Add(ctx, int64(stats.CompaniesFilled))
	for stage, n := range map[string]int{
		"personal_domain": stats.PersonalRemoved,
		"click_timestamp": stats.ClickTimeDuplicates,
		"clicked_link":    stats.ClickLinkDuplicates,
	} {
		if n > 0 {
			m.rowsRemoved.Add(ctx, int64(n), metric.WithAttributes(attribute.String("stage", stage)))
		}
	}
}
