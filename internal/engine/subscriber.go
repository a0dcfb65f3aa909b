package engine

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/modules"
)

// SubscriptionState describes the lifecycle state of one trigger subscription
type SubscriptionState string

const (
	SubscriptionRunning SubscriptionState = "running"
	SubscriptionStopped SubscriptionState = "stopped"
	SubscriptionFailed  SubscriptionState = "failed"
)

// SubscriptionHealth is the introspectable state of one subscription
type SubscriptionHealth struct {
	Module    string            `json:"module"`
	Job       string            `json:"job"`
	Subject   string            `json:"subject"`
	State     SubscriptionState `json:"state"`
	Messages  int64             `json:"messages"`
	Errors    int64             `json:"errors"`
	LastError string            `json:"last_error,omitempty"`
}

// subscriptionResult is the terminal outcome of one subscription loop,
// reported back to the engine through the results channel
type subscriptionResult struct {
	module  string
	job     string
	subject string
	err     error // nil on clean shutdown
}

// subscription bridges one bus subject to one job's handler.
// Each subscription pumps its own channel independently: a slow or
// blocked handler delays only its own subject's next message.
type subscription struct {
	module   string
	job      models.JobDefinition
	handler  modules.HandlerFunc
	busSub   interfaces.BusSubscription
	engine   *Engine
	messages int64
	errors   int64
}

// subscribe opens the bus subscription for one triggered job and starts
// its consumption loop
func (e *Engine) subscribe(module string, job models.JobDefinition, runtime *modules.Runtime) error {
	handler, ok := runtime.Handlers.Lookup(job.Queue, job.Name)
	if !ok {
		return fmt.Errorf("%w: %s/%s in module %s", ErrNoHandler, job.Queue, job.Name, module)
	}

	busSub, err := e.bus.Subscribe(job.TriggeredBy)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", job.TriggeredBy, err)
	}

	sub := &subscription{
		module:  module,
		job:     job,
		handler: handler,
		busSub:  busSub,
		engine:  e,
	}
	e.subscriptions = append(e.subscriptions, sub)

	e.healthMu.Lock()
	e.health[module+"/"+job.Name] = &SubscriptionHealth{
		Module:  module,
		Job:     job.Name,
		Subject: job.TriggeredBy,
		State:   SubscriptionRunning,
	}
	e.healthMu.Unlock()

	e.wg.Add(1)
	common.SafeGo(e.logger, "subscription:"+job.TriggeredBy, sub.run)

	e.logger.Info().
		Str("module", module).
		Str("job", job.Name).
		Str("subject", job.TriggeredBy).
		Msg("Trigger subscription opened")

	return nil
}

func (s *subscription) unsubscribe() {
	s.busSub.Unsubscribe()
}

// run is the subscription's consumption loop. It processes messages in
// arrival order, one at a time, and never dies to a single bad message:
// per-message failures are handled inside handleMessage, and a panic of
// the loop itself is reported as this subscription's terminal failure
// without affecting any other subscription.
func (s *subscription) run() {
	defer s.engine.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.engine.logger.Error().
				Str("module", s.module).
				Str("job", s.job.Name).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Subscription loop failed")
			s.report(fmt.Errorf("subscription loop panicked: %v", r))
			return
		}
		s.report(nil)
	}()

	for msg := range s.busSub.Messages() {
		s.handleMessage(msg)
	}
}

// handleMessage invokes the handler for one bus message.
// Decode errors and handler errors are logged with the module/job
// identity and swallowed; the loop moves on to the next message.
func (s *subscription) handleMessage(msg interfaces.BusMessage) {
	atomic.AddInt64(&s.messages, 1)

	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&s.errors, 1)
			s.engine.logger.Error().
				Str("module", s.module).
				Str("job", s.job.Name).
				Str("subject", s.job.TriggeredBy).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Handler panicked on bus message")
			s.recordError(fmt.Sprintf("handler panic: %v", r))
		}
	}()

	var data map[string]interface{}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			atomic.AddInt64(&s.errors, 1)
			s.engine.logger.Error().Err(err).
				Str("module", s.module).
				Str("job", s.job.Name).
				Str("subject", s.job.TriggeredBy).
				Msg("Failed to decode bus message payload")
			s.recordError("decode: " + err.Error())
			return
		}
	}

	req := &modules.Request{
		Context: s.engine.contexts.Make(s.module),
		Job: modules.JobPayload{
			Name: s.job.Name,
			Data: data,
		},
	}

	result, err := s.handler(s.engine.ctx, req)
	if err != nil {
		atomic.AddInt64(&s.errors, 1)
		s.engine.logger.Error().Err(err).
			Str("module", s.module).
			Str("job", s.job.Name).
			Str("subject", s.job.TriggeredBy).
			Msg("Handler failed on bus message")
		s.recordError(err.Error())
		return
	}

	if result != nil && len(result.Metrics) > 0 {
		s.engine.logger.Debug().
			Str("module", s.module).
			Str("job", s.job.Name).
			Int("metrics", len(result.Metrics)).
			Msg("Handler completed with metrics")
	}

	s.syncHealth()
}

// recordError updates this subscription's health entry with the latest error
func (s *subscription) recordError(msg string) {
	s.engine.healthMu.Lock()
	if h, ok := s.engine.health[s.module+"/"+s.job.Name]; ok {
		h.Messages = atomic.LoadInt64(&s.messages)
		h.Errors = atomic.LoadInt64(&s.errors)
		h.LastError = msg
	}
	s.engine.healthMu.Unlock()
}

// syncHealth refreshes this subscription's counters in the health table
func (s *subscription) syncHealth() {
	s.engine.healthMu.Lock()
	if h, ok := s.engine.health[s.module+"/"+s.job.Name]; ok {
		h.Messages = atomic.LoadInt64(&s.messages)
		h.Errors = atomic.LoadInt64(&s.errors)
	}
	s.engine.healthMu.Unlock()
}

// report sends this subscription's terminal result to the engine.
// The send is non-blocking so loop exit never deadlocks during shutdown
// once the collector has stopped draining.
func (s *subscription) report(err error) {
	res := subscriptionResult{
		module:  s.module,
		job:     s.job.Name,
		subject: s.job.TriggeredBy,
		err:     err,
	}
	select {
	case s.engine.results <- res:
	default:
	}
}

// collectResults consumes terminal subscription results and updates the
// health table, so one module's bus trouble is visible without taking
// down anything else.
func (e *Engine) collectResults() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case res := <-e.results:
			e.healthMu.Lock()
			if h, ok := e.health[res.module+"/"+res.job]; ok {
				if res.err != nil {
					h.State = SubscriptionFailed
					h.LastError = res.err.Error()
				} else {
					h.State = SubscriptionStopped
				}
			}
			e.healthMu.Unlock()

			if res.err != nil {
				e.logger.Error().Err(res.err).
					Str("module", res.module).
					Str("job", res.job).
					Str("subject", res.subject).
					Msg("Subscription terminated with error")
			}
		}
	}
}

// Health returns a snapshot of every subscription's state
func (e *Engine) Health() []SubscriptionHealth {
	e.healthMu.RLock()
	defer e.healthMu.RUnlock()

	out := make([]SubscriptionHealth, 0, len(e.health))
	for _, sub := range e.subscriptions {
		if h, ok := e.health[sub.module+"/"+sub.job.Name]; ok {
			snapshot := *h
			snapshot.Messages = atomic.LoadInt64(&sub.messages)
			snapshot.Errors = atomic.LoadInt64(&sub.errors)
			out = append(out, snapshot)
		}
	}
	return out
}
