package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pathakanu/billcal/internal/metrics"
	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/session"
	"github.com/pathakanu/billcal/internal/store"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the daily check at 8AM.
const DefaultSchedule = "0 8 * * *"

// BillStore reads the bills a check considers.
type BillStore interface {
	Unpaid(ctx context.Context, userID, from, to string) ([]model.Bill, error)
}

// SubscriptionStore reads notification grants.
type SubscriptionStore interface {
	Get(ctx context.Context, userID string) (model.Subscription, error)
	Granted(ctx context.Context) ([]model.Subscription, error)
}

// Scheduler checks users' bills and delivers due notifications, once per
// tag per day.
type Scheduler struct {
	bills    BillStore
	subs     SubscriptionStore
	notifier Notifier
	location *time.Location
	logger   *log.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	grants  map[string]model.Subscription
	sent    map[string]map[string]struct{}
	sentDay map[string]string
}

// NewScheduler returns a Scheduler evaluating days in loc.
func NewScheduler(bills BillStore, subs SubscriptionStore, notifier Notifier, loc *time.Location, logger *log.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		bills:    bills,
		subs:     subs,
		notifier: notifier,
		location: loc,
		logger:   logger,
		cron:     cron.New(cron.WithLocation(loc)),
		grants:   make(map[string]model.Subscription),
		sent:     make(map[string]map[string]struct{}),
		sentDay:  make(map[string]string),
	}
}

// RequestPermission reports whether the user granted notifications. The
// answer is read once and cached until Forget is called.
func (s *Scheduler) RequestPermission(ctx context.Context, sess session.Session) (bool, error) {
	s.mu.Lock()
	sub, ok := s.grants[sess.UserID]
	s.mu.Unlock()
	if ok {
		return sub.Granted, nil
	}

	sub, err := s.subs.Get(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		sub = model.Subscription{UserID: sess.UserID}
	} else if err != nil {
		return false, fmt.Errorf("load subscription: %w", err)
	}

	s.mu.Lock()
	s.grants[sess.UserID] = sub
	s.mu.Unlock()
	return sub.Granted, nil
}

// Forget drops the cached permission of userID, e.g. after the user changed
// their subscription.
func (s *Scheduler) Forget(userID string) {
	s.mu.Lock()
	delete(s.grants, userID)
	s.mu.Unlock()
}

// Check delivers the notifications due for the session user and returns the
// ones sent. Notifications already delivered today are skipped.
func (s *Scheduler) Check(ctx context.Context, sess session.Session) ([]Notification, error) {
	granted, err := s.RequestPermission(ctx, sess)
	if err != nil || !granted {
		return nil, err
	}

	s.mu.Lock()
	sub := s.grants[sess.UserID]
	s.mu.Unlock()

	today := sess.Today()
	day := today.Format(session.DayLayout)
	bills, err := s.bills.Unpaid(ctx, sess.UserID, day, today.AddDate(0, 0, Window).Format(session.DayLayout))
	if err != nil {
		return nil, fmt.Errorf("load unpaid bills: %w", err)
	}

	var fired []Notification
	for _, n := range Due(bills, today) {
		if !s.claim(sess.UserID, day, n.Tag) {
			continue
		}
		if err := s.notifier.Notify(ctx, sub, n); err != nil {
			s.release(sess.UserID, n.Tag)
			s.logger.Printf("scheduler: notify %s %s: %v", sess.UserID, n.Tag, err)
			continue
		}
		metrics.NotificationsSent.WithLabelValues(string(n.Kind)).Inc()
		fired = append(fired, n)
	}
	return fired, nil
}

// claim marks tag as delivered today and reports whether it was new.
func (s *Scheduler) claim(userID, day, tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sentDay[userID] != day {
		s.sentDay[userID] = day
		s.sent[userID] = make(map[string]struct{})
	}
	if _, ok := s.sent[userID][tag]; ok {
		return false
	}
	s.sent[userID][tag] = struct{}{}
	return true
}

func (s *Scheduler) release(userID, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sent[userID], tag)
}

// CheckAll runs Check for every subscribed user.
func (s *Scheduler) CheckAll(ctx context.Context) {
	subs, err := s.subs.Granted(ctx)
	if err != nil {
		s.logger.Printf("scheduler: fetch subscriptions: %v", err)
		return
	}
	for _, sub := range subs {
		sess := session.New(sub.UserID, s.location)
		fired, err := s.Check(ctx, sess)
		if err != nil {
			s.logger.Printf("scheduler: user %s: %v", sub.UserID, err)
			continue
		}
		if len(fired) > 0 {
			s.logger.Printf("scheduler: user %s: sent %d notifications", sub.UserID, len(fired))
		}
	}
}

// Start registers the daily job on spec and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	_, err := s.cron.AddFunc(spec, func() {
		s.CheckAll(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
