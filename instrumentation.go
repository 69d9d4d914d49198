package gateways

import (
	"github.com/ygrebnov/gateways/metrics"
	"github.com/ygrebnov/gateways/observe"
)

// Metric names recorded by a Dispatcher.
const (
	MetricMessagesAccepted   = "messages_accepted_total"
	MetricMessagesDispatched = "messages_dispatched_total"
	MetricMessagesCompleted  = "messages_completed_total"
	MetricMessagesFailed     = "messages_failed_total"
	MetricMessagesDropped    = "messages_dropped_total"
	MetricGroupsStarted      = "groups_started_total"
	MetricViolations         = "termination_violations_total"
	MetricGatewaysBusy       = "gateways_busy"
	MetricProcessingSeconds  = "message_processing_seconds"
)

// meteredSink derives metrics from dispatch events and forwards every event.
type meteredSink struct {
	next observe.Sink

	accepted   metrics.Counter
	dispatched metrics.Counter
	completed  metrics.Counter
	failed     metrics.Counter
	dropped    metrics.Counter
	started    metrics.Counter
	violations metrics.Counter
	busy       metrics.UpDownCounter
	processing metrics.Histogram
}

func newMeteredSink(next observe.Sink, p metrics.Provider) *meteredSink {
	return &meteredSink{
		next: next,
		accepted: p.Counter(MetricMessagesAccepted,
			metrics.WithDescription("Messages admitted to the pending queue."), metrics.WithUnit("1")),
		dispatched: p.Counter(MetricMessagesDispatched,
			metrics.WithDescription("Messages assigned to a gateway."), metrics.WithUnit("1")),
		completed: p.Counter(MetricMessagesCompleted,
			metrics.WithDescription("Messages processed and recorded."), metrics.WithUnit("1")),
		failed: p.Counter(MetricMessagesFailed,
			metrics.WithDescription("Messages whose processing failed."), metrics.WithUnit("1")),
		dropped: p.Counter(MetricMessagesDropped,
			metrics.WithDescription("Queued messages dropped because their group was cancelled."), metrics.WithUnit("1")),
		started: p.Counter(MetricGroupsStarted,
			metrics.WithDescription("Groups that had their first message dispatched."), metrics.WithUnit("1")),
		violations: p.Counter(MetricViolations,
			metrics.WithDescription("Messages selected after their group was terminated."), metrics.WithUnit("1")),
		busy: p.UpDownCounter(MetricGatewaysBusy,
			metrics.WithDescription("Gateways currently processing a message."), metrics.WithUnit("1")),
		processing: p.Histogram(MetricProcessingSeconds,
			metrics.WithDescription("Time spent processing a message."), metrics.WithUnit("seconds")),
	}
}

func (s *meteredSink) Emit(e observe.Event) {
	switch e.Kind {
	case observe.BatchAccepted:
		s.accepted.Add(int64(e.Count))
	case observe.MessageAssigned:
		s.dispatched.Add(1)
		s.busy.Add(1)
	case observe.MessageCompleted:
		s.completed.Add(1)
		s.busy.Add(-1)
		s.processing.Record(e.Duration.Seconds())
	case observe.MessageFailed:
		s.failed.Add(1)
		s.busy.Add(-1)
		s.processing.Record(e.Duration.Seconds())
	case observe.MessagesDropped:
		s.dropped.Add(int64(e.Count))
	case observe.GroupStarted:
		s.started.Add(1)
	case observe.TerminationViolation:
		s.violations.Add(1)
	}
	s.next.Emit(e)
}
