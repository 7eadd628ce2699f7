package migration

import (
	"context"
	"time"

	"strata/internal/services"
	"strata/internal/store"
)

// TransferRequest describes one object movement between locations.
type TransferRequest struct {
	Object         *store.DataObject
	SourceLocation string
	TargetLocation string
	ChunkSizeBytes int64
}

// Transfer moves object bytes between tiers. Implementations must call
// progress after every chunk with the cumulative percentage and return
// ctx.Err() promptly when the context ends between chunks.
type Transfer interface {
	Run(ctx context.Context, req TransferRequest, progress func(percent float64)) error
}

// SimulatedTransfer models a transfer as size divided by a fixed throughput,
// moved chunk by chunk. FailChunk, when set, is consulted before each chunk
// and lets tests inject mid-transfer failures.
type SimulatedTransfer struct {
	ThroughputMBps float64
	FailChunk      func(chunk int) error
}

// NewSimulatedTransfer builds the in-tree transfer adapter.
func NewSimulatedTransfer(throughputMBps float64) *SimulatedTransfer {
	return &SimulatedTransfer{ThroughputMBps: throughputMBps}
}

func (t *SimulatedTransfer) Run(ctx context.Context, req TransferRequest, progress func(percent float64)) error {
	if req.Object == nil {
		return services.Wrap(services.ErrValidation, "migration", "transfer", "object is required", nil)
	}
	chunkSize := req.ChunkSizeBytes
	if chunkSize <= 0 {
		chunkSize = 100 << 20
	}
	throughput := t.ThroughputMBps
	if throughput <= 0 {
		throughput = 1000
	}

	total := req.Object.SizeBytes
	if total <= 0 {
		progress(100)
		return nil
	}

	var moved int64
	for chunk := 0; moved < total; chunk++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.FailChunk != nil {
			if err := t.FailChunk(chunk); err != nil {
				return err
			}
		}

		step := chunkSize
		if remaining := total - moved; remaining < step {
			step = remaining
		}
		wait := time.Duration(float64(step) / (throughput * (1 << 20)) * float64(time.Second))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		moved += step
		progress(float64(moved) / float64(total) * 100)
	}
	return nil
}
