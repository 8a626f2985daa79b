package card

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/plonkdeck/plonkdeck/internal/metrics"
	"github.com/plonkdeck/plonkdeck/internal/types"
)

// Service turns a finalized round record into a note in the flashcard
// program: compile, ensure the deck exists, adapt fields, add the note.
type Service interface {
	Create(ctx context.Context, record types.RoundRecord, overrides Overrides) (int64, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	rpc       RPCClient
	deckName  string
	modelName string
}

func NewCreatorService(rpc RPCClient, deckName, modelName string, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		rpc:       rpc,
		deckName:  deckName,
		modelName: modelName,
	}
}

// Create submits one card. A round whose card already exists is refused with
// ErrCardAlreadyCreated unless overrides.Force is set; the caller owns the
// confirmation surface.
func (s *ServiceImpl) Create(ctx context.Context, record types.RoundRecord, overrides Overrides) (int64, error) {
	ctx, span := otel.Tracer("CardService").Start(ctx, "Create")
	defer span.End()
	span.SetAttributes(attribute.String("round_key", string(record.Key)))

	l := s.logger.With(slog.String("method", "Create"), slog.String("round_key", string(record.Key)))

	if record.CardCreated && !overrides.Force {
		l.InfoContext(ctx, "card already exists for round, refusing without force")
		metrics.CardsCreated.WithLabelValues("refused_duplicate").Inc()
		return 0, types.ErrCardAlreadyCreated
	}

	content, err := Compile(record, overrides)
	if err != nil {
		l.WarnContext(ctx, "card compilation refused", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Compilation refused")
		metrics.CardsCreated.WithLabelValues("incomplete").Inc()
		return 0, err
	}

	if err := s.ensureDeck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Deck bootstrap failed")
		metrics.CardsCreated.WithLabelValues("rpc_error").Inc()
		return 0, err
	}

	modelFields, err := s.rpc.ModelFieldNames(ctx, s.modelName)
	if err != nil {
		l.ErrorContext(ctx, "failed to list note model fields", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Model lookup failed")
		metrics.CardsCreated.WithLabelValues("rpc_error").Inc()
		return 0, fmt.Errorf("listing fields of model %q: %w", s.modelName, err)
	}

	fields, err := AdaptFields(modelFields, content)
	if err != nil {
		l.ErrorContext(ctx, "note model is unusable", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Model fields mismatched")
		metrics.CardsCreated.WithLabelValues("config_mismatch").Inc()
		return 0, err
	}

	noteID, err := s.rpc.AddNote(ctx, s.deckName, s.modelName, fields)
	if err != nil {
		l.ErrorContext(ctx, "failed to add note", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "AddNote failed")
		metrics.CardsCreated.WithLabelValues("rpc_error").Inc()
		return 0, fmt.Errorf("adding note to deck %q: %w", s.deckName, err)
	}

	l.InfoContext(ctx, "card created", slog.Int64("note_id", noteID))
	span.SetStatus(codes.Ok, "Card created")
	metrics.CardsCreated.WithLabelValues("created").Inc()
	return noteID, nil
}

func (s *ServiceImpl) ensureDeck(ctx context.Context) error {
	decks, err := s.rpc.ListDecks(ctx)
	if err != nil {
		return fmt.Errorf("listing decks: %w", err)
	}
	if slices.Contains(decks, s.deckName) {
		return nil
	}
	s.logger.InfoContext(ctx, "creating missing deck", slog.String("deck", s.deckName))
	if err := s.rpc.CreateDeck(ctx, s.deckName); err != nil {
		return fmt.Errorf("creating deck %q: %w", s.deckName, err)
	}
	return nil
}
