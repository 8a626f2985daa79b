package round

import (
	"log/slog"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/plonkdeck/plonkdeck/internal/metrics"
	"github.com/plonkdeck/plonkdeck/internal/types"
)

// Store owns all round records for the session. It is the only writer of
// record fact fields; everything else works with snapshots.
type Store interface {
	GetOrCreate(key types.RoundKey) *types.RoundRecord
	Snapshot(key types.RoundKey) (types.RoundRecord, error)
	Merge(key types.RoundKey, fact types.Fact) bool
	SetCountry(key types.RoundKey, role Role, fact *types.CountryFact) bool
	SetState(key types.RoundKey, state types.LifecycleState)
	SetClues(key types.RoundKey, clues []types.Clue)
	SetOverview(key types.RoundKey, overview *types.OverviewData)
	MarkCardCreated(key types.RoundKey)
	MarkCardCancelled(key types.RoundKey)
	SetUserClueText(key types.RoundKey, text string)
	Keys() []types.RoundKey
}

// Role selects which side of the record a country fact lands on.
type Role int

const (
	RoleActual Role = iota
	RoleGuess
)

func (r Role) String() string {
	if r == RoleGuess {
		return "guess"
	}
	return "actual"
}

// MemoryStore keeps every record for the lifetime of the session. Superseded
// rounds are never purged, only ignored, so a user can still request a card
// after navigating forward.
type MemoryStore struct {
	logger *slog.Logger

	mu      sync.RWMutex
	records map[types.RoundKey]*types.RoundRecord

	// seen dedups at-least-once fact delivery (poller and mutation observer
	// both report the same change). Keyed by RoundKey + fact digest.
	seen *cache.Cache
}

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		logger:  logger,
		records: make(map[types.RoundKey]*types.RoundRecord),
		seen:    cache.New(5*time.Minute, 10*time.Minute),
	}
}

// GetOrCreate returns the live record for key, creating it on first sight.
// Callers outside this package must treat the pointer as read-only.
func (s *MemoryStore) GetOrCreate(key types.RoundKey) *types.RoundRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(key)
}

func (s *MemoryStore) getOrCreateLocked(key types.RoundKey) *types.RoundRecord {
	if rec, ok := s.records[key]; ok {
		return rec
	}
	rec := &types.RoundRecord{
		Key:       key,
		State:     types.StateAwaitingLocation,
		StartedAt: time.Now(),
	}
	s.records[key] = rec
	s.logger.Info("round record created", slog.String("round_key", string(key)))
	return rec
}

// Snapshot returns a deep-enough copy for read-side consumers.
func (s *MemoryStore) Snapshot(key types.RoundKey) (types.RoundRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return types.RoundRecord{}, types.ErrNotFound
	}
	return copyRecord(rec), nil
}

func copyRecord(rec *types.RoundRecord) types.RoundRecord {
	out := *rec
	out.Clues = append([]types.Clue(nil), rec.Clues...)
	if rec.Actual.Country != nil {
		c := *rec.Actual.Country
		out.Actual.Country = &c
	}
	if rec.Guess.Country != nil {
		c := *rec.Guess.Country
		out.Guess.Country = &c
	}
	if rec.Score != nil {
		v := *rec.Score
		out.Score = &v
	}
	return out
}

// Merge applies one normalized fact to the record under the rank-monotonic
// policy: an equal or higher rank replaces the incumbent field, a strictly
// lower rank is a no-op. Coordinates and country facts rank independently.
// Returns true when the record changed.
func (s *MemoryStore) Merge(key types.RoundKey, fact types.Fact) bool {
	dedupKey := string(key) + "|" + fact.Digest()
	if _, dup := s.seen.Get(dedupKey); dup {
		metrics.FactsDropped.WithLabelValues("duplicate").Inc()
		return false
	}
	s.seen.Set(dedupKey, struct{}{}, cache.DefaultExpiration)

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(key)

	changed := false
	switch fact.Kind {
	case types.FactCoordinate:
		if fact.Coordinate.Valid() && fact.Rank >= rec.Actual.LocationRank {
			coord := fact.Coordinate
			rec.Actual.Location = &coord
			rec.Actual.LocationRank = fact.Rank
			changed = true
		}
	case types.FactGuessCoordinate:
		if fact.Coordinate.Valid() && fact.Rank >= rec.Guess.LocationRank {
			coord := fact.Coordinate
			rec.Guess.Location = &coord
			rec.Guess.LocationRank = fact.Rank
			changed = true
		}
	case types.FactPanoramaID:
		if fact.PanoramaID != "" && fact.Rank >= rec.Actual.PanoramaRank {
			rec.Actual.PanoramaID = fact.PanoramaID
			rec.Actual.PanoramaRank = fact.Rank
			changed = true
		}
	case types.FactCameraPose:
		if rec.Actual.Camera == nil || fact.Rank >= rec.Actual.PanoramaRank {
			camera := fact.Camera
			rec.Actual.Camera = &camera
			changed = true
		}
	case types.FactScore:
		if rec.Score == nil {
			score := fact.Score
			rec.Score = &score
			changed = true
		}
	case types.FactCountryCodeHint:
		changed = s.mergeCountryLocked(rec, RoleActual, &types.CountryFact{
			Country:     fact.CountryName,
			CountryCode: fact.CountryCode,
			Provenance:  fact.Rank,
		})
	case types.FactAddressText:
		if fact.CountryName != "" {
			changed = s.mergeCountryLocked(rec, RoleActual, &types.CountryFact{
				Country:     fact.CountryName,
				CountryCode: fact.CountryCode,
				Locality:    fact.Text,
				Provenance:  fact.Rank,
			})
		}
	}

	if changed {
		metrics.FactsMerged.WithLabelValues(fact.Kind.String(), fact.Rank.String()).Inc()
		s.logger.Debug("fact merged",
			slog.String("round_key", string(key)),
			slog.String("kind", fact.Kind.String()),
			slog.String("rank", fact.Rank.String()))
	} else {
		metrics.FactsDropped.WithLabelValues("outranked").Inc()
	}
	return changed
}

// SetCountry applies a resolved country fact to one side of the record under
// the same rank policy. Returns true when the record changed.
func (s *MemoryStore) SetCountry(key types.RoundKey, role Role, fact *types.CountryFact) bool {
	if fact == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(key)
	return s.mergeCountryLocked(rec, role, fact)
}

func (s *MemoryStore) mergeCountryLocked(rec *types.RoundRecord, role Role, fact *types.CountryFact) bool {
	var slot **types.CountryFact
	if role == RoleGuess {
		slot = &rec.Guess.Country
	} else {
		slot = &rec.Actual.Country
	}
	if incumbent := *slot; incumbent != nil && fact.Provenance < incumbent.Provenance {
		s.logger.Debug("country fact outranked, dropped",
			slog.String("round_key", string(rec.Key)),
			slog.String("role", role.String()),
			slog.String("incoming", fact.Provenance.String()),
			slog.String("incumbent", incumbent.Provenance.String()))
		return false
	}
	// Equal rank still merges: a later delivery from the same source can only
	// be fresher. Keep the incumbent's enrichment if the newcomer lacks one.
	merged := *fact
	if merged.Enrichment == nil && *slot != nil {
		merged.Enrichment = (*slot).Enrichment
	}
	if merged.Locality == "" && *slot != nil {
		merged.Locality = (*slot).Locality
	}
	*slot = &merged
	return true
}

func (s *MemoryStore) SetState(key types.RoundKey, state types.LifecycleState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(key)
	rec.State = state
	if state == types.StateRoundEnded && rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now()
	}
}

func (s *MemoryStore) SetClues(key types.RoundKey, clues []types.Clue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(key).Clues = append([]types.Clue(nil), clues...)
}

func (s *MemoryStore) SetOverview(key types.RoundKey, overview *types.OverviewData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(key).Overview = overview
}

func (s *MemoryStore) MarkCardCreated(key types.RoundKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(key)
	rec.CardCreated = true
	rec.State = types.StateCardResolved
}

func (s *MemoryStore) MarkCardCancelled(key types.RoundKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(key)
	rec.UserCancelledCard = true
	rec.State = types.StateCardResolved
}

func (s *MemoryStore) SetUserClueText(key types.RoundKey, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(key).UserClueText = text
}

// Keys returns every known round key, newest records included, in no
// particular order.
func (s *MemoryStore) Keys() []types.RoundKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]types.RoundKey, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}
