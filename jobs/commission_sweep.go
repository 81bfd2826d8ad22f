// jobs/commission_sweep.go
package jobs

import (
	"sync"
	"time"

	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/monitor"
	"github.com/wfunc/gamebot/services"
)

// CommissionSweep 定时发放到期佣金
type CommissionSweep struct {
	merchant *services.MerchantService
	cfg      config.CommissionConfig

	mu      sync.Mutex
	running bool

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewCommissionSweep(merchant *services.MerchantService, cfg config.CommissionConfig) *CommissionSweep {
	return &CommissionSweep{
		merchant: merchant,
		cfg:      cfg,
		stop:     make(chan struct{}),
	}
}

// Start runs the sweep on its interval until Stop.
func (j *CommissionSweep) Start() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-j.stop:
				return
			case <-ticker.C:
				j.RunOnce(time.Now())
			}
		}
	}()
	logger.Log.Infow("commission sweep started", "interval", j.cfg.SweepInterval)
}

// RunOnce executes a single sweep pass. A pass still in flight makes this
// a no-op, so a slow database never stacks passes.
func (j *CommissionSweep) RunOnce(now time.Time) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	for {
		batch, err := j.merchant.ProcessMatured(now, j.cfg.SweepBatch)
		if err != nil {
			logger.Log.Errorw("commission sweep failed", "error", err)
			return
		}
		if batch == nil {
			return
		}
		monitor.CommissionPaid(batch.MerchantPayout + batch.UserPayout)
		// A full batch means more may be waiting.
		if batch.Count < j.cfg.SweepBatch {
			return
		}
	}
}

// Stop shuts the sweep down and waits for an in-flight pass.
func (j *CommissionSweep) Stop() {
	j.once.Do(func() {
		close(j.stop)
	})
	j.wg.Wait()
}
