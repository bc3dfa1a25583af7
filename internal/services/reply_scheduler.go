package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// ReplyScheduler runs the reply poller on a fixed period. An overrunning
// cycle causes the next tick to be skipped, never overlapped.
type ReplyScheduler struct {
	replyService *ReplyService
	interval     time.Duration
	stopChan     chan struct{}
	running      bool
	mu           sync.Mutex
	polling      sync.Mutex // guards against overlapping cycles
	cancel       context.CancelFunc
}

// NewReplyScheduler creates a new reply scheduler
func NewReplyScheduler(replyService *ReplyService, interval time.Duration) *ReplyScheduler {
	return &ReplyScheduler{
		replyService: replyService,
		interval:     interval,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the periodic polling process
func (s *ReplyScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	log.Printf("[ReplyScheduler] Starting with interval: %v", s.interval)

	go func() {
		// Give the service a moment to come up before the first cycle.
		select {
		case <-time.After(10 * time.Second):
			s.runCycle(ctx)
		case <-s.stopChan:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runCycle(ctx)
			case <-s.stopChan:
				log.Println("[ReplyScheduler] Stopping")
				return
			}
		}
	}()
}

// Stop stops the polling process and cancels any in-flight cycle.
func (s *ReplyScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// runCycle executes one poll cycle unless the previous one is still going.
func (s *ReplyScheduler) runCycle(ctx context.Context) {
	if !s.polling.TryLock() {
		log.Println("[ReplyScheduler] Previous cycle still running, skipping this tick")
		return
	}
	defer s.polling.Unlock()

	if err := s.replyService.PollOnce(ctx); err != nil {
		log.Printf("[ReplyScheduler] Poll cycle failed: %v", err)
	}
}
