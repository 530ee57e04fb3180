package telegram

import (
	"context"
	"errors"

	"github.com/L1nMay/rangeprobe/internal/logger"
)

var ErrQueueFull = errors.New("telegram queue full")

type Sender interface {
	Send(text string) error
}

// Worker delivers queued messages in the background so callers never wait
// on the Bot API.
type Worker struct {
	sender Sender
	queue  chan string
}

func NewWorker(sender Sender, size int) *Worker {
	if size <= 0 {
		size = 16
	}
	return &Worker{sender: sender, queue: make(chan string, size)}
}

func (w *Worker) Enqueue(text string) error {
	select {
	case w.queue <- text:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Worker) Run(ctx context.Context) {
	logger.Infof("telegram worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case text := <-w.queue:
			if err := w.sender.Send(text); err != nil {
				logger.Errorf("telegram send failed: %v", err)
			}
		}
	}
}
