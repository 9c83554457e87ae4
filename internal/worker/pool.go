package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vid2md/vid2md/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency
// configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine.
// Each loop runs one project's pipeline stages sequentially; distinct
// projects run in parallel across loops.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.logger.Info("Worker received project",
				slog.String("worker_name", workerName),
				slog.String("project_id", msg.ProjectID),
				slog.Uint64("delivery_tag", msg.DeliveryTag),
			)

			err := w.processor.Run(ctx, msg)

			w.settleDelivery(workerName, msg, err)
		}
	}
}

// settleDelivery acknowledges the delivery according to the processing
// outcome. A run that reached a terminal project state (completed or
// recorded failure) is handled and ACKed; a claim conflict is dropped
// since another run owns the project; anything else is requeued.
func (w *Worker) settleDelivery(workerName string, msg *domain.ProjectMessage, err error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
			slog.String("worker_name", workerName),
			slog.String("project_id", msg.ProjectID),
		)
		return
	}

	if err == nil {
		if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("project_id", msg.ProjectID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := !errors.Is(err, domain.ErrProjectNotClaimable)

	w.logger.Error("Project processing failed",
		slog.String("worker_name", workerName),
		slog.String("project_id", msg.ProjectID),
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)

	if nackErr := channel.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("project_id", msg.ProjectID),
			slog.String("error", nackErr.Error()),
		)
	}
}
