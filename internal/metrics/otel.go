package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/chatflow/chatengine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelRecorder 通过 OpenTelemetry metric API 记录轮次指标
type OTelRecorder struct {
	turns     metric.Int64Counter
	turnTime  metric.Float64Histogram
	phaseTime metric.Float64Histogram
	busy      metric.Int64Counter
	nodes     metric.Int64Histogram
}

var _ chatengine.TurnObserver = (*OTelRecorder)(nil)

// NewOTelRecorder 在 meter 上创建轮次相关的 instrument
func NewOTelRecorder(meter metric.Meter) (*OTelRecorder, error) {
	r := &OTelRecorder{}
	var err error

	if r.turns, err = meter.Int64Counter("chatflow.turns",
		metric.WithDescription("Finished chat turns"),
	); err != nil {
		return nil, fmt.Errorf("create turns counter: %w", err)
	}
	if r.turnTime, err = meter.Float64Histogram("chatflow.turn.duration",
		metric.WithDescription("Chat turn duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create turn histogram: %w", err)
	}
	if r.phaseTime, err = meter.Float64Histogram("chatflow.phase.duration",
		metric.WithDescription("Turn phase duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create phase histogram: %w", err)
	}
	if r.busy, err = meter.Int64Counter("chatflow.busy_rejections",
		metric.WithDescription("Calls rejected while a turn was in flight"),
	); err != nil {
		return nil, fmt.Errorf("create busy counter: %w", err)
	}
	if r.nodes, err = meter.Int64Histogram("chatflow.retrieved_nodes",
		metric.WithDescription("Context nodes kept after retrieval"),
	); err != nil {
		return nil, fmt.Errorf("create nodes histogram: %w", err)
	}
	return r, nil
}

// ObserveTurn 记录一个结束的轮次
func (r *OTelRecorder) ObserveTurn(engine string, status chatengine.TurnStatus, streaming bool, d time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("status", string(status)),
		attribute.Bool("streaming", streaming),
	)
	r.turns.Add(ctx, 1, attrs)
	r.turnTime.Record(ctx, d.Seconds(), attrs)
}

// ObservePhase 记录一个阶段
func (r *OTelRecorder) ObservePhase(engine string, phase chatengine.TurnState, d time.Duration, err error) {
	r.phaseTime.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("phase", string(phase)),
		attribute.Bool("error", err != nil),
	))
}

// ObserveBusy 记录一次忙拒绝
func (r *OTelRecorder) ObserveBusy(engine string) {
	r.busy.Add(context.Background(), 1, metric.WithAttributes(attribute.String("engine", engine)))
}

// ObserveRetrieval 记录检索节点数
func (r *OTelRecorder) ObserveRetrieval(engine string, nodes int) {
	r.nodes.Record(context.Background(), int64(nodes), metric.WithAttributes(attribute.String("engine", engine)))
}
