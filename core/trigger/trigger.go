package trigger

import (
	"context"
	"github.com/balizero/agentcore/core/worker"
)

type Trigger interface {
	AddWorkers(ctx context.Context, workers ...worker.Worker) (int, error)
}
