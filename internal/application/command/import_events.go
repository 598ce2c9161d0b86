package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT EVENTS COMMAND
// Массовый импорт каталога кластеров и событий одной транзакцией.
// Кластеры сопоставляются по номеру, события - по паре (кластер, имя);
// повторный импорт того же каталога - upsert, бегущие моменты
// существующих событий не затираются.
// ══════════════════════════════════════════════════════════════════════════════

// ClusterSpec - строка импортируемого кластера.
type ClusterSpec struct {
	Number int
	Name   string
}

// EventSpec - строка импортируемого события.
type EventSpec struct {
	// ClusterNumber - номер кластера-владельца.
	ClusterNumber int

	Name string

	// Modes - поддерживаемые режимы подсчёта.
	Modes []string

	// Direction - направление сравнения leaderboard-очков
	// ("higher"/"lower"; пусто = higher).
	Direction string

	MinParticipants int
	MaxParticipants int
}

// ImportEventsCommand содержит импортируемый каталог.
type ImportEventsCommand struct {
	Clusters []ClusterSpec
	Events   []EventSpec
}

// Validate проверяет корректность параметров команды.
func (c *ImportEventsCommand) Validate() error {
	if len(c.Clusters) == 0 {
		return errors.New("import_events: at least one cluster is required")
	}
	numbers := make(map[int]struct{}, len(c.Clusters))
	for _, cl := range c.Clusters {
		if _, dup := numbers[cl.Number]; dup {
			return fmt.Errorf("import_events: duplicate cluster number %d", cl.Number)
		}
		numbers[cl.Number] = struct{}{}
	}
	for _, ev := range c.Events {
		if _, ok := numbers[ev.ClusterNumber]; !ok {
			return fmt.Errorf("import_events: event %q references unknown cluster %d", ev.Name, ev.ClusterNumber)
		}
	}
	return nil
}

// ImportEventsResult содержит результат импорта.
type ImportEventsResult struct {
	ClustersImported int
	EventsImported   int
	ImportedAt       time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ImportEventsHandler обрабатывает ImportEventsCommand.
type ImportEventsHandler struct {
	eventRepo event.Repository
}

// NewImportEventsHandler создаёт обработчик импорта.
func NewImportEventsHandler(eventRepo event.Repository) *ImportEventsHandler {
	return &ImportEventsHandler{eventRepo: eventRepo}
}

// Handle выполняет импорт каталога.
func (h *ImportEventsHandler) Handle(ctx context.Context, cmd ImportEventsCommand) (*ImportEventsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("import_events: validation failed: %w", err)
	}

	clusters := make([]*event.Cluster, 0, len(cmd.Clusters))
	clusterIDByNumber := make(map[int]string, len(cmd.Clusters))
	for _, spec := range cmd.Clusters {
		cl, err := event.NewCluster(uuid.New().String(), spec.Number, spec.Name)
		if err != nil {
			return nil, fmt.Errorf("import_events: cluster %d: %w", spec.Number, err)
		}
		clusters = append(clusters, cl)
		clusterIDByNumber[cl.Number] = cl.ID
	}

	events := make([]*event.Event, 0, len(cmd.Events))
	for _, spec := range cmd.Events {
		modes := make([]event.ScoringMode, 0, len(spec.Modes))
		for _, raw := range spec.Modes {
			mode, err := event.ParseScoringMode(raw)
			if err != nil {
				return nil, fmt.Errorf("import_events: event %q: %w", spec.Name, err)
			}
			modes = append(modes, mode)
		}

		ev, err := event.NewEvent(
			shared.EventID(uuid.New().String()),
			clusterIDByNumber[spec.ClusterNumber],
			spec.Name,
			modes,
			event.ScoreDirection(spec.Direction),
			spec.MinParticipants,
			spec.MaxParticipants,
		)
		if err != nil {
			return nil, fmt.Errorf("import_events: event %q: %w", spec.Name, err)
		}
		events = append(events, ev)
	}

	if err := h.eventRepo.BulkImport(ctx, clusters, events); err != nil {
		return nil, fmt.Errorf("import_events: %w", err)
	}

	return &ImportEventsResult{
		ClustersImported: len(clusters),
		EventsImported:   len(events),
		ImportedAt:       time.Now().UTC(),
	}, nil
}
