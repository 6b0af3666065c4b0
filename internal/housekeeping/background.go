package housekeeping

import (
	"context"
	"time"

	"github.com/hubshare/shareindex/internal/logging"
)

const (
	// housekeepingInterval is the interval at which housekeeping will be
	// invoked in the background.
	housekeepingInterval = 24 * time.Hour
)

// Housekeeper performs periodic pruning of on-disk share index artifacts:
// stale per-hub listing cache files and expired temporary share entries.
// Implementations are supplied by the coordinator, which owns the relevant
// state.
type Housekeeper interface {
	Housekeep() error
}

// HousekeepRegularly provides regular housekeeping operations at a standard
// interval. It is designed to be run as a background goroutine in a
// long-lived process. It will terminate when the provided context is
// cancelled.
func HousekeepRegularly(ctx context.Context, logger *logging.Logger, keeper Housekeeper) {
	// Perform an initial housekeeping operation since the ticker won't fire
	// straight away.
	logger.Println("Performing initial housekeeping")
	if err := keeper.Housekeep(); err != nil {
		logger.Warn(err)
	}

	// Create a ticker to regulate housekeeping and defer its shutdown.
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	// Loop and wait for the ticker or cancellation.
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Println("Performing regular housekeeping")
			if err := keeper.Housekeep(); err != nil {
				logger.Warn(err)
			}
		}
	}
}
