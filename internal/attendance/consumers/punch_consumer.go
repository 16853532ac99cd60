package consumers

import (
	"context"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
	"github.com/punchflow/punchflow-backend/internal/attendance/service"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/messaging"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// PunchEventConsumer consumes raw punches from terminal gateways and
// schedule-change notifications from the staff service.
type PunchEventConsumer struct {
	consumer *messaging.Consumer
	punches  *service.PunchService
	resolver *schedule.Resolver
	logger   *logger.Logger
}

// NewPunchEventConsumer creates a new punch event consumer
func NewPunchEventConsumer(
	rmq *messaging.RabbitMQ,
	punches *service.PunchService,
	resolver *schedule.Resolver,
	log *logger.Logger,
) (*PunchEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "attendance-service.ingest", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeTerminalEvents, "terminal.punch.#"); err != nil {
		return nil, err
	}
	if err := consumer.Subscribe(messaging.ExchangeStaffEvents, "staff.shift.#"); err != nil {
		return nil, err
	}

	c := &PunchEventConsumer{
		consumer: consumer,
		punches:  punches,
		resolver: resolver,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventTerminalPunch, c.handleTerminalPunch)
	consumer.RegisterHandler(messaging.EventShiftCreated, c.handleShiftChanged)
	consumer.RegisterHandler(messaging.EventShiftUpdated, c.handleShiftChanged)
	consumer.RegisterHandler(messaging.EventShiftDeleted, c.handleShiftChanged)

	return c, nil
}

// Start starts consuming messages
func (c *PunchEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// handleTerminalPunch feeds a broker-delivered punch through the same
// pipeline the HTTP ingest uses. The outcome envelope is logged, not
// returned; gateways deliver fire-and-forget.
func (c *PunchEventConsumer) handleTerminalPunch(ctx context.Context, event *messaging.Event) error {
	var data messaging.TerminalPunchEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	ctx = tenant.WithTenantID(ctx, data.TenantID)

	punch := &domain.PunchEvent{
		EmployeeRef:       data.BadgeCode,
		Instant:           data.PunchedAt.UTC(),
		TerminalStateCode: data.ButtonCode,
		Source:            domain.SourceTerminal,
		DeviceID:          data.DeviceSerial,
	}

	result, err := c.punches.ProcessPunch(ctx, punch)
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("badge_code", data.BadgeCode).
		Str("status", string(result.Status)).
		Str("record_id", result.RecordID).
		Msg("broker punch processed")
	return nil
}

// handleShiftChanged drops the resolver's cached assignments for the
// affected employee and date.
func (c *PunchEventConsumer) handleShiftChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.ShiftChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.resolver.Invalidate(data.TenantID, data.EmployeeID, data.ShiftDate)

	c.logger.Debug().
		Str("employee_id", data.EmployeeID).
		Str("shift_id", data.ShiftID).
		Msg("schedule cache invalidated")
	return nil
}
