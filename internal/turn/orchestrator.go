package turn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/autoventas/sales-ai-platform/internal/conversation"
	"github.com/autoventas/sales-ai-platform/internal/idempotency"
	"github.com/autoventas/sales-ai-platform/internal/leads"
	"github.com/autoventas/sales-ai-platform/internal/observability/metrics"
	"github.com/autoventas/sales-ai-platform/internal/statestore"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

// ErrValidation marks malformed requests. No state is touched.
var ErrValidation = errors.New("turn: invalid request")

// FallbackReply answers duplicates whose original turn never committed, and
// error paths where no conversational reply exists.
const FallbackReply = "Tuvimos un detalle técnico. ¿Me repites tu último mensaje, por favor?"

// Request is one inbound message on any channel. MessageID is set only for
// webhook deliveries and feeds the idempotency guard.
type Request struct {
	SessionID string
	Message   string
	Channel   string
	MessageID string
}

// Response is the turn's reply envelope, channel-agnostic.
type Response struct {
	Reply              string
	SuggestedQuestions []string
	Duplicate          bool
}

// Orchestrator runs the full turn sequence: idempotency begin, session lock,
// load, step, save, side effects, idempotency commit.
type Orchestrator struct {
	store   statestore.Store
	machine *conversation.Machine
	leads   leads.Repository
	guard   idempotency.Guard
	metrics *metrics.TurnMetrics
	logger  *logging.Logger
	locks   *sessionLocks
}

// NewOrchestrator wires the turn pipeline. guard may be a NoopGuard; metrics
// may be nil.
func NewOrchestrator(store statestore.Store, machine *conversation.Machine, repo leads.Repository, guard idempotency.Guard, m *metrics.TurnMetrics, logger *logging.Logger) *Orchestrator {
	if store == nil {
		panic("turn: state store cannot be nil")
	}
	if machine == nil {
		panic("turn: state machine cannot be nil")
	}
	if repo == nil {
		panic("turn: leads repository cannot be nil")
	}
	if guard == nil {
		guard = idempotency.NewNoopGuard()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		store:   store,
		machine: machine,
		leads:   repo,
		guard:   guard,
		metrics: m,
		logger:  logger,
		locks:   newSessionLocks(),
	}
}

// HandleTurn processes one message. Only ErrValidation and storage failures
// reach the caller; everything else resolves into a conversational reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return Response{}, ErrValidation
	}
	if req.Channel == "" {
		req.Channel = "api"
	}
	started := time.Now()

	fresh := true
	if req.MessageID != "" {
		result, err := o.guard.Begin(ctx, req.MessageID)
		if err != nil {
			// Guard outage degrades to at-least-once processing.
			o.logger.Warn("idempotency guard unavailable, processing anyway",
				"message_id", req.MessageID, "error", err)
		} else if !result.Fresh {
			o.metrics.ObserveDuplicate()
			reply := result.Reply
			if reply == "" {
				reply = FallbackReply
			}
			o.logger.Info("duplicate delivery replayed",
				"session_id", req.SessionID, "message_id", req.MessageID)
			return Response{Reply: reply, Duplicate: true}, nil
		}
	} else {
		fresh = false
	}

	committed := false
	if fresh {
		// Waiting duplicates must always unblock, error paths included.
		defer func() {
			if !committed {
				o.guard.Commit(ctx, req.MessageID, FallbackReply)
			}
		}()
	}

	release := o.locks.acquire(req.SessionID)
	defer release()

	resp, err := o.runTurn(ctx, req, true)
	if err != nil {
		o.metrics.ObserveTurn(req.Channel, "error", time.Since(started).Seconds())
		return Response{}, err
	}

	if fresh {
		o.guard.Commit(ctx, req.MessageID, resp.Reply)
		committed = true
	}
	o.metrics.ObserveTurn(req.Channel, "ok", time.Since(started).Seconds())
	return resp, nil
}

// runTurn is the load, step, save, side-effects section, executed under the
// session lock.
func (o *Orchestrator) runTurn(ctx context.Context, req Request, allowRetry bool) (Response, error) {
	state, err := o.store.Load(ctx, req.SessionID, req.Channel)
	if err != nil {
		return Response{}, err
	}

	outcome := o.machine.Step(ctx, state, req.Message)
	if outcome.FAQDetour {
		o.metrics.ObserveGrounding(outcome.Grounded)
	}

	// Terminal turns return the snapshot untouched; nothing to save.
	if outcome.State != state {
		if err := o.store.Save(ctx, outcome.State); err != nil {
			if errors.Is(err, statestore.ErrVersionConflict) && allowRetry {
				// The session lock makes this unreachable in-process; it
				// means another deployment raced us. Retry once on the
				// winner's state.
				o.logger.Warn("version conflict, retrying turn", "session_id", req.SessionID)
				return o.runTurn(ctx, req, false)
			}
			return Response{}, err
		}
	}

	if outcome.Lead != nil {
		if _, err := o.leads.Save(ctx, outcome.Lead); err != nil {
			// The reply already promised a follow-up; losing the lead is a
			// loud error but not a failed turn.
			o.logger.Error("lead persistence failed",
				"session_id", req.SessionID,
				"phone", logging.MaskPhone(outcome.Lead.Phone),
				"error", err)
		} else {
			o.metrics.ObserveLeadCaptured()
			o.logger.Info("lead captured",
				"session_id", req.SessionID,
				"phone", logging.MaskPhone(outcome.Lead.Phone))
		}
	}

	return Response{Reply: outcome.Reply, SuggestedQuestions: outcome.SuggestedQuestions}, nil
}
