package daemon

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler runs a task on a cron schedule. It drives periodic normalization
// calibration but is agnostic to what the task does.
type Scheduler struct {
	task func() error

	mu       sync.Mutex
	schedule cron.Schedule
	timer    *time.Timer
	next     time.Time
	running  bool
	stopc    chan struct{}
}

func NewScheduler(task func() error) *Scheduler {
	return &Scheduler{task: task}
}

// Schedule parses and installs a cron expression. It does not start the
// scheduler; call Start after a successful Schedule.
func (s *Scheduler) Schedule(expr string) error {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return pkgerrors.Wrapf(err, "invalid cron expression %q", expr)
	}

	s.mu.Lock()
	s.schedule = schedule
	s.next = schedule.Next(time.Now())
	s.mu.Unlock()
	return nil
}

// Start begins firing the task at the scheduled times. Restarting an already
// running scheduler re-arms it against the current schedule.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == nil {
		return
	}
	if s.running {
		s.stopLocked()
	}

	s.running = true
	s.stopc = make(chan struct{})
	s.next = s.schedule.Next(time.Now())
	s.timer = time.NewTimer(time.Until(s.next))

	go s.loop(s.timer, s.stopc)

	logrus.WithFields(logrus.Fields{
		"next": s.next.Format(time.RFC3339),
	}).Infof("calibration scheduler started")
}

func (s *Scheduler) loop(timer *time.Timer, stopc chan struct{}) {
	for {
		select {
		case <-stopc:
			timer.Stop()
			return
		case <-timer.C:
			if err := s.task(); err != nil {
				logrus.Errorf("scheduled task failed: %v", err)
			}

			s.mu.Lock()
			if !s.running || s.stopc != stopc {
				s.mu.Unlock()
				return
			}
			s.next = s.schedule.Next(time.Now())
			timer.Reset(time.Until(s.next))
			s.mu.Unlock()
		}
	}
}

// Stop halts the scheduler. It is safe to call on a stopped scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopc)
	s.stopc = nil
}

// Status reports the next scheduled run and whether the scheduler is running.
func (s *Scheduler) Status() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, s.running
}
