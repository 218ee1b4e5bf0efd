package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
	"github.com/noah-isme/plan-configurator/internal/events"
)

// TaskClient is the subset of *asynq.Client used to enqueue work.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher schedules background work for contract events. It satisfies
// events.Scheduler.
type Dispatcher struct {
	Client   TaskClient
	Deliver  bool
	Archive  bool
	MaxRetry int
	Queue    string
}

// Schedule enqueues delivery and archive tasks for a submitted contract. Other
// topics are ignored.
func (d Dispatcher) Schedule(ctx context.Context, ev dbgen.DomainEvent) error {
	if d.Client == nil || ev.Topic != events.TopicContractSubmitted {
		return nil
	}
	id := common.UUIDString(ev.AggregateID)
	if id == "" {
		return errors.New("queue: contract event has no aggregate id")
	}
	var joined error
	if d.Deliver {
		joined = errors.Join(joined, d.enqueue(ctx, TypeContractDeliver, id))
	}
	if d.Archive {
		joined = errors.Join(joined, d.enqueue(ctx, TypeContractArchive, id))
	}
	return joined
}

func (d Dispatcher) enqueue(ctx context.Context, typename, contractID string) error {
	retry := d.MaxRetry
	if retry <= 0 {
		retry = 8
	}
	queueName := d.Queue
	if queueName == "" {
		queueName = QueueContracts
	}
	task, err := NewContractTask(typename, contractID, asynq.MaxRetry(retry), asynq.Queue(queueName))
	if err != nil {
		return err
	}
	if _, err := d.Client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("queue: enqueue %s: %w", typename, err)
	}
	return nil
}
