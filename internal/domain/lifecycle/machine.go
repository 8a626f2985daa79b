// Package lifecycle drives the round state machine: it consumes normalized
// facts and host signals, decides round boundaries, and triggers
// reconciliation and the card pipeline at the right moments.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/plonkdeck/plonkdeck/internal/domain/card"
	"github.com/plonkdeck/plonkdeck/internal/domain/clue"
	"github.com/plonkdeck/plonkdeck/internal/domain/geocode"
	"github.com/plonkdeck/plonkdeck/internal/domain/round"
	"github.com/plonkdeck/plonkdeck/internal/domain/signal"
	"github.com/plonkdeck/plonkdeck/internal/metrics"
	"github.com/plonkdeck/plonkdeck/internal/types"
)

// CardCreator is the slice of the card service the machine needs.
type CardCreator interface {
	Create(ctx context.Context, record types.RoundRecord, overrides card.Overrides) (int64, error)
}

// Options tune machine behavior.
type Options struct {
	// SettleDelay is how long after a round-end signal late network facts
	// are still awaited before the record is finalized.
	SettleDelay time.Duration
	// AutoCreateCards submits a card as soon as reconciliation settles,
	// instead of waiting for an explicit user request.
	AutoCreateCards bool
}

// Machine owns the current lifecycle state and the current RoundKey. All
// mutation of shared round state flows through here (or the store's merge);
// signal adapters and clients stay stateless.
type Machine struct {
	logger   *slog.Logger
	store    round.Store
	geocoder geocode.Service
	cards    CardCreator
	urls     *signal.URLAdapter
	dom      *signal.DOMAdapter
	network  *signal.NetworkAdapter
	identity *signal.IdentityResolver
	opts     Options

	mu         sync.Mutex
	state      types.LifecycleState
	currentKey types.RoundKey
	// settleTimers holds the pending finalization timer per key so a
	// superseding round or an Idle transition can cancel it.
	settleTimers map[types.RoundKey]*time.Timer
	// abandoned marks keys whose pending work must no longer touch the
	// record: the user navigated on and may have acted on it already.
	abandoned map[types.RoundKey]bool
	// ending tracks keys whose round-end handling is in flight so duplicate
	// end signals coalesce into one transition.
	ending map[types.RoundKey]bool

	reconcileGroup singleflight.Group
}

func NewMachine(
	store round.Store,
	geocoder geocode.Service,
	cards CardCreator,
	identity *signal.IdentityResolver,
	opts Options,
	logger *slog.Logger,
) *Machine {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 2500 * time.Millisecond
	}
	return &Machine{
		logger:       logger,
		store:        store,
		geocoder:     geocoder,
		cards:        cards,
		urls:         signal.NewURLAdapter(),
		dom:          signal.NewDOMAdapter(),
		network:      signal.NewNetworkAdapter(),
		identity:     identity,
		opts:         opts,
		state:        types.StateIdle,
		settleTimers: make(map[types.RoundKey]*time.Timer),
		abandoned:    make(map[types.RoundKey]bool),
		ending:       make(map[types.RoundKey]bool),
	}
}

// State returns the current lifecycle state and round key.
func (m *Machine) State() (types.LifecycleState, types.RoundKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.currentKey
}

// Tick is the periodic lifecycle re-evaluation: one URL snapshot plus one DOM
// snapshot, typically every second. The same evaluation also runs on DOM
// mutation events, so duplicate delivery is the normal case.
func (m *Machine) Tick(ctx context.Context, urlSnap types.URLSnapshot, domSnap types.DOMSnapshot) {
	urlFacts := m.urls.Parse(urlSnap)
	m.evaluate(ctx, urlFacts, domSnap)
}

// OnDOMMutation handles an asynchronous DOM change using the last known URL.
func (m *Machine) OnDOMMutation(ctx context.Context, urlSnap types.URLSnapshot, domSnap types.DOMSnapshot) {
	m.Tick(ctx, urlSnap, domSnap)
}

// OnNetworkBody ingests one intercepted response body. Facts carrying a round
// hint attach to that round of the current session; hintless facts attach to
// the current round. Bodies observed while no session is known are dropped.
func (m *Machine) OnNetworkBody(ctx context.Context, body []byte) {
	facts := m.network.Extract(body)
	if len(facts) == 0 {
		return
	}
	for _, fact := range facts {
		key, ok := m.identity.ForRound(fact.RoundHint)
		if !ok {
			continue
		}
		m.mu.Lock()
		dead := m.abandoned[key]
		m.mu.Unlock()
		if dead {
			continue
		}
		m.store.Merge(key, fact)
	}
	m.advanceOnLocation(ctx)
}

// evaluate is the single transition function. It runs under the machine lock
// except for the slow work (reconciliation), which is scheduled out-of-band.
func (m *Machine) evaluate(ctx context.Context, urlFacts signal.URLFacts, domSnap types.DOMSnapshot) {
	if !urlFacts.InGame {
		m.toIdle(urlFacts.ExcludedMode)
		return
	}

	domRound, _ := m.dom.RoundNumber(domSnap)
	key, ok := m.identity.Resolve(urlFacts, domRound)
	if !ok {
		m.toIdle(false)
		return
	}

	m.mu.Lock()
	if key != m.currentKey {
		m.beginRoundLocked(key)
	}
	state := m.state
	m.mu.Unlock()

	// Merge whatever the DOM snapshot offers. Round-end is a lifecycle
	// signal, not record data; it is handled below.
	for _, fact := range m.dom.Extract(domSnap) {
		if fact.Kind == types.FactRoundEnded {
			continue
		}
		m.store.Merge(key, fact)
	}

	m.advanceOnLocation(ctx)

	if m.dom.RoundEnded(domSnap) && (state == types.StateAwaitingLocation || state == types.StateActiveRound) {
		m.onRoundEnd(ctx, key)
	}
}

// beginRoundLocked starts tracking a new round. The superseded round's record
// is kept under its own key; only its pending work is cancelled.
func (m *Machine) beginRoundLocked(key types.RoundKey) {
	if m.currentKey != "" {
		m.cancelPendingLocked(m.currentKey)
	}
	m.currentKey = key
	m.state = types.StateAwaitingLocation
	m.store.SetState(key, types.StateAwaitingLocation)
	metrics.LifecycleTransitions.WithLabelValues(types.StateAwaitingLocation.String()).Inc()
	m.logger.Info("round started", slog.String("round_key", string(key)))
}

// cancelPendingLocked stops the settle timer for a key and marks it abandoned
// so late pipeline results cannot mutate its record anymore.
func (m *Machine) cancelPendingLocked(key types.RoundKey) {
	if timer, ok := m.settleTimers[key]; ok {
		timer.Stop()
		delete(m.settleTimers, key)
	}
	m.abandoned[key] = true
}

func (m *Machine) toIdle(excludedMode bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == types.StateIdle {
		return
	}
	if m.currentKey != "" {
		m.cancelPendingLocked(m.currentKey)
	}
	m.state = types.StateIdle
	m.currentKey = ""
	metrics.LifecycleTransitions.WithLabelValues(types.StateIdle.String()).Inc()
	if excludedMode {
		m.logger.Info("competitive mode detected, ground truth withheld; staying idle")
	} else {
		m.logger.Info("left game context")
	}
}

// advanceOnLocation moves AwaitingLocation to ActiveRound once the current
// round has its first valid coordinate.
func (m *Machine) advanceOnLocation(_ context.Context) {
	m.mu.Lock()
	key := m.currentKey
	state := m.state
	m.mu.Unlock()
	if key == "" || state != types.StateAwaitingLocation {
		return
	}

	snap, err := m.store.Snapshot(key)
	if err != nil || snap.Actual.Location == nil {
		return
	}

	m.mu.Lock()
	if m.currentKey == key && m.state == types.StateAwaitingLocation {
		m.state = types.StateActiveRound
		m.store.SetState(key, types.StateActiveRound)
		metrics.LifecycleTransitions.WithLabelValues(types.StateActiveRound.String()).Inc()
		m.logger.Info("location resolved, round active", slog.String("round_key", string(key)))
	}
	m.mu.Unlock()
}

// onRoundEnd handles the result screen becoming visible. Duplicate signals
// for the same key (poller plus mutation observer, re-renders) coalesce into
// one transition and one settle timer.
func (m *Machine) onRoundEnd(ctx context.Context, key types.RoundKey) {
	m.mu.Lock()
	if m.ending[key] || m.abandoned[key] {
		m.mu.Unlock()
		return
	}
	m.ending[key] = true
	m.state = types.StateRoundEnded
	m.store.SetState(key, types.StateRoundEnded)
	metrics.LifecycleTransitions.WithLabelValues(types.StateRoundEnded.String()).Inc()

	// Settle window: let late network facts land before finalizing.
	m.settleTimers[key] = time.AfterFunc(m.opts.SettleDelay, func() {
		m.reconcile(context.WithoutCancel(ctx), key)
	})
	m.mu.Unlock()

	m.logger.Info("round ended, settle window open",
		slog.String("round_key", string(key)),
		slog.Duration("settle_delay", m.opts.SettleDelay))
}

// reconcile resolves both countries for the round and synthesizes clues.
// Single-flighted per key; safe against the round having been abandoned while
// the settle timer was pending.
func (m *Machine) reconcile(ctx context.Context, key types.RoundKey) {
	_, _, _ = m.reconcileGroup.Do(string(key), func() (any, error) {
		ctx, span := otel.Tracer("LifecycleMachine").Start(ctx, "Reconcile")
		defer span.End()
		span.SetAttributes(attribute.String("round_key", string(key)))

		l := m.logger.With(slog.String("method", "reconcile"), slog.String("round_key", string(key)))

		snap, err := m.store.Snapshot(key)
		if err != nil {
			span.SetStatus(codes.Error, "Record vanished")
			return nil, nil
		}

		if snap.Actual.Country == nil || snap.Actual.Country.Provenance < snap.Actual.LocationRank {
			if snap.Actual.Location != nil {
				fact := m.geocoder.Resolve(ctx, *snap.Actual.Location, geocode.RoleActual, snap.Actual.LocationRank)
				m.applyCountry(key, round.RoleActual, fact)
			}
		}
		if snap.Guess.Location != nil {
			fact := m.geocoder.Resolve(ctx, *snap.Guess.Location, geocode.RoleGuess, snap.Guess.LocationRank)
			m.applyCountry(key, round.RoleGuess, fact)
		}

		snap, err = m.store.Snapshot(key)
		if err != nil {
			return nil, nil
		}
		if snap.Actual.Country == nil {
			// Every adapter failed. The DOM-text fallback would have merged
			// already if the banner was readable; the record proceeds and
			// card creation surfaces the failure to the user.
			l.WarnContext(ctx, "round settled without a resolvable country")
			span.SetStatus(codes.Error, "No resolvable country")
		} else if snap.Completed() {
			clues := clue.Synthesize(*snap.Actual.Country, *snap.Guess.Country, snap.Overview)
			m.store.SetClues(key, clues)
			l.InfoContext(ctx, "clues synthesized", slog.Int("count", len(clues)))
		}

		m.mu.Lock()
		delete(m.settleTimers, key)
		aborted := m.abandoned[key]
		if !aborted {
			if m.currentKey == key {
				m.state = types.StateCardPending
			}
			m.store.SetState(key, types.StateCardPending)
			metrics.LifecycleTransitions.WithLabelValues(types.StateCardPending.String()).Inc()
		}
		m.mu.Unlock()

		if aborted {
			l.InfoContext(ctx, "round superseded during settle, result discarded")
			span.SetStatus(codes.Ok, "Superseded")
			return nil, nil
		}

		span.SetStatus(codes.Ok, "Reconciled")

		if m.opts.AutoCreateCards {
			if _, err := m.ResolveCard(ctx, key, card.Overrides{}); err != nil {
				l.WarnContext(ctx, "automatic card creation failed", slog.Any("error", err))
			}
		}
		return nil, nil
	})
}

// applyCountry merges a pipeline result unless the round was abandoned while
// the call was in flight.
func (m *Machine) applyCountry(key types.RoundKey, role round.Role, fact *types.CountryFact) {
	if fact == nil {
		return
	}
	m.mu.Lock()
	dead := m.abandoned[key]
	m.mu.Unlock()
	if dead {
		m.logger.Debug("dropping pipeline result for abandoned round",
			slog.String("round_key", string(key)))
		return
	}
	m.store.SetCountry(key, role, fact)
}

// ResolveCard drives CardPending to CardResolved: it submits the card (or
// records the user's refusal via Decline). Re-creating a card for a round
// that already has one requires overrides.Force.
func (m *Machine) ResolveCard(ctx context.Context, key types.RoundKey, overrides card.Overrides) (int64, error) {
	snap, err := m.store.Snapshot(key)
	if err != nil {
		return 0, err
	}
	if overrides.ClueText != "" {
		m.store.SetUserClueText(key, overrides.ClueText)
	}

	noteID, err := m.cards.Create(ctx, snap, overrides)
	if err != nil {
		return 0, err
	}

	m.store.MarkCardCreated(key)
	m.mu.Lock()
	if m.currentKey == key {
		m.state = types.StateCardResolved
	}
	metrics.LifecycleTransitions.WithLabelValues(types.StateCardResolved.String()).Inc()
	m.mu.Unlock()
	return noteID, nil
}

// Decline records that the user does not want a card for this round.
func (m *Machine) Decline(key types.RoundKey) error {
	if _, err := m.store.Snapshot(key); err != nil {
		return err
	}
	m.store.MarkCardCancelled(key)
	m.mu.Lock()
	if m.currentKey == key {
		m.state = types.StateCardResolved
	}
	metrics.LifecycleTransitions.WithLabelValues(types.StateCardResolved.String()).Inc()
	m.mu.Unlock()
	return nil
}
