// scheduler/scheduler.go
package scheduler

import (
	"container/heap"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/store"
)

// Handler processes one expired phase timer. It must be idempotent: the
// in-process heap and the recovery scan can both observe the same expiry,
// and only the store record decides who wins.
type Handler func(timer *models.PhaseTimer)

type timerItem struct {
	handle    string
	expiresAt time.Time
	index     int
}

type timerHeap []*timerItem

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	item := x.(*timerItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Scheduler 阶段定时器：内存堆负责准点触发，store 里的记录负责崩溃恢复。
// 每个 (variant, room, phase) 只有一个句柄，重复调度会替换旧的。
type Scheduler struct {
	mu      sync.Mutex
	heap    timerHeap
	items   map[string]*timerItem
	store   store.Store
	handler Handler

	scanInterval time.Duration
	scanning     bool

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// New creates a scheduler over the given store. scanInterval is how often
// the recovery scan looks for expired persisted timers.
func New(st store.Store, scanInterval time.Duration) *Scheduler {
	if scanInterval <= 0 {
		scanInterval = time.Second
	}
	return &Scheduler{
		items:        make(map[string]*timerItem),
		store:        st,
		scanInterval: scanInterval,
		stop:         make(chan struct{}),
	}
}

// SetHandler installs the expiry callback. Must be called before Start.
func (s *Scheduler) SetHandler(h Handler) {
	s.handler = h
}

func timerKey(variant models.Variant, roomID string, phase models.TimerPhase) string {
	return fmt.Sprintf("timer:%s:%s:%s", variant, roomID, phase)
}

// Schedule persists a phase timer and arms the in-memory trigger. An
// existing timer for the same handle is replaced.
func (s *Scheduler) Schedule(variant models.Variant, roomID string, phase models.TimerPhase, expiresAt time.Time) error {
	timer := &models.PhaseTimer{
		RoomID:    roomID,
		Variant:   variant,
		Phase:     phase,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(timer)
	if err != nil {
		return err
	}

	handle := timerKey(variant, roomID, phase)
	ttl := time.Until(expiresAt) + time.Hour

	// Unconditional replace: delete then create fresh.
	s.store.Delete(handle)
	if _, err := s.store.Put(handle, data, 0, ttl); err != nil {
		return err
	}

	s.mu.Lock()
	if item, ok := s.items[handle]; ok {
		item.expiresAt = expiresAt
		heap.Fix(&s.heap, item.index)
	} else {
		item := &timerItem{handle: handle, expiresAt: expiresAt}
		heap.Push(&s.heap, item)
		s.items[handle] = item
	}
	s.mu.Unlock()
	return nil
}

// Cancel removes the timer for a handle, both armed and persisted.
func (s *Scheduler) Cancel(variant models.Variant, roomID string, phase models.TimerPhase) {
	handle := timerKey(variant, roomID, phase)
	s.store.Delete(handle)

	s.mu.Lock()
	if item, ok := s.items[handle]; ok {
		heap.Remove(&s.heap, item.index)
		delete(s.items, handle)
	}
	s.mu.Unlock()
}

// Start runs the trigger loop and the recovery scan until Stop.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.triggerLoop()
	go s.scanLoop()
	logger.Log.Info("scheduler started")
}

// Stop shuts both loops down and waits for them.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

func (s *Scheduler) triggerLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			for {
				handle, ok := s.popDue(now)
				if !ok {
					break
				}
				s.fire(handle)
			}
		}
	}
}

func (s *Scheduler) popDue(now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.heap) == 0 || s.heap[0].expiresAt.After(now) {
		return "", false
	}
	item := heap.Pop(&s.heap).(*timerItem)
	delete(s.items, item.handle)
	return item.handle, true
}

// fire claims the persisted record and hands it to the handler. Deleting
// the record before processing means a concurrent firer finds nothing and
// backs off.
func (s *Scheduler) fire(handle string) {
	data, _, err := s.store.Get(handle)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Log.Errorw("timer load failed", "handle", handle, "error", err)
		return
	}

	timer := &models.PhaseTimer{}
	if err := json.Unmarshal(data, timer); err != nil {
		logger.Log.Errorw("corrupt timer dropped", "handle", handle, "error", err)
		s.store.Delete(handle)
		return
	}
	if !timer.Expired(time.Now()) {
		// Replaced by a later deadline after this heap entry was armed.
		return
	}

	// The delete is the claim: whoever removes the exact bytes they read
	// owns the expiry. The loser of a trigger/scan race finds the record
	// gone, or changed, and backs off.
	claimed, err := s.store.CompareAndDelete(handle, data)
	if err != nil {
		logger.Log.Errorw("timer claim failed", "handle", handle, "error", err)
		return
	}
	if !claimed {
		return
	}
	if s.handler != nil {
		go s.handler(timer)
	}
}

func (s *Scheduler) scanLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.scanOnce()
		}
	}
}

// scanOnce picks up persisted timers whose in-process trigger was lost.
// The scanning flag keeps a slow pass from stacking behind the ticker.
func (s *Scheduler) scanOnce() {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return
	}
	s.scanning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
	}()

	keys, err := s.store.Keys("timer:")
	if err != nil {
		logger.Log.Errorw("timer scan failed", "error", err)
		return
	}
	now := time.Now()
	for _, handle := range keys {
		data, _, err := s.store.Get(handle)
		if err != nil {
			continue
		}
		timer := &models.PhaseTimer{}
		if err := json.Unmarshal(data, timer); err != nil {
			s.store.Delete(handle)
			continue
		}
		if !timer.Expired(now) {
			continue
		}
		logger.Log.Infow("recovering expired timer",
			"room", timer.RoomID, "variant", timer.Variant, "phase", timer.Phase)
		s.fire(handle)
	}
}
