package scheduler

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

type schedulerMetricsCollection struct {
	enqueuedCount metric.Int64Counter
	dedupedCount  metric.Int64Counter
	abortedCount  metric.Int64Counter
	executedCount metric.Int64Counter
	runDuration   metric.Float64Histogram
}

func setupSchedulerMetrics(meter metric.Meter) (schedulerMetricsCollection, error) {
	enqueuedCount, err := meter.Int64Counter(
		"scheduler/enqueued_tasks",
		metric.WithDescription("Total number of tasks accepted for execution"),
	)
	if err != nil {
		return schedulerMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	dedupedCount, err := meter.Int64Counter(
		"scheduler/deduplicated_enqueues",
		metric.WithDescription("Enqueues that joined an already outstanding task"),
	)
	if err != nil {
		return schedulerMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	abortedCount, err := meter.Int64Counter(
		"scheduler/aborted_tasks",
		metric.WithDescription("Tasks abandoned before execution started"),
	)
	if err != nil {
		return schedulerMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	executedCount, err := meter.Int64Counter(
		"scheduler/executed_tasks",
		metric.WithDescription("Tasks that ran to settlement, successfully or not"),
	)
	if err != nil {
		return schedulerMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		"scheduler/task_run_duration_seconds",
		metric.WithDescription("Wall time spent in task Run functions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return schedulerMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	return schedulerMetricsCollection{
		enqueuedCount: enqueuedCount,
		dedupedCount:  dedupedCount,
		abortedCount:  abortedCount,
		executedCount: executedCount,
		runDuration:   runDuration,
	}, nil
}
