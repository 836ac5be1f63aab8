package content

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/vocadrill/vocadrill/internal/domain"
)

// Provider resolves card content. The review engine treats it as an external
// collaborator: schedules key on IDs alone and survive content changes.
type Provider interface {
	// Lookup returns the card for a normalized ID, or nil if it no longer
	// exists.
	Lookup(ctx context.Context, id string) (*domain.Card, error)

	// ListPublished returns every card currently visible to learners.
	ListPublished(ctx context.Context) ([]domain.Card, error)
}

// FileProvider serves cards parsed from vocab files under a lessons
// directory. Files are re-read on every call, so edits and deletions show up
// without a restart.
type FileProvider struct {
	root   string
	logger *slog.Logger
}

var _ Provider = (*FileProvider)(nil)

func NewFileProvider(root string, logger *slog.Logger) *FileProvider {
	return &FileProvider{root: root, logger: logger}
}

// ListPublished walks the lessons directory and parses every .vocab and .md
// file. Cards without an explicit ID get "<file base>-<index>", matching how
// lesson imports label unidentified cards.
func (p *FileProvider) ListPublished(ctx context.Context) ([]domain.Card, error) {
	var cards []domain.Card

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := strings.ToLower(d.Name())
		if d.IsDir() || (!strings.HasSuffix(name, ".vocab") && !strings.HasSuffix(name, ".md")) {
			return nil
		}

		fileCards, parseErr := ParseFile(path)
		if parseErr != nil {
			p.logger.Warn("skipping unreadable vocab file", "path", path, "error", parseErr)
			return nil
		}

		base := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		for i, card := range fileCards {
			if card.ID == "" {
				card.ID = fmt.Sprintf("%s-%d", base, i)
			}
			card.ID = domain.NormalizeCardID(card.ID)
			cards = append(cards, card)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking lessons directory %s: %w", p.root, err)
	}
	return cards, nil
}

func (p *FileProvider) Lookup(ctx context.Context, id string) (*domain.Card, error) {
	cards, err := p.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	id = domain.NormalizeCardID(id)
	for i := range cards {
		if cards[i].ID == id {
			return &cards[i], nil
		}
	}
	return nil, nil
}

// StaticProvider serves a fixed card set from memory. Used in tests and
// wherever content is assembled by the caller.
type StaticProvider struct {
	cards map[string]domain.Card
	order []string
}

var _ Provider = (*StaticProvider)(nil)

func Static(cards ...domain.Card) *StaticProvider {
	p := &StaticProvider{cards: make(map[string]domain.Card, len(cards))}
	for _, c := range cards {
		c.ID = domain.NormalizeCardID(c.ID)
		if _, ok := p.cards[c.ID]; !ok {
			p.order = append(p.order, c.ID)
		}
		p.cards[c.ID] = c
	}
	return p
}

func (p *StaticProvider) Lookup(ctx context.Context, id string) (*domain.Card, error) {
	c, ok := p.cards[domain.NormalizeCardID(id)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (p *StaticProvider) ListPublished(ctx context.Context) ([]domain.Card, error) {
	out := make([]domain.Card, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.cards[id])
	}
	return out, nil
}

// Remove unpublishes a card, simulating upstream content deletion.
func (p *StaticProvider) Remove(id string) {
	id = domain.NormalizeCardID(id)
	delete(p.cards, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}
