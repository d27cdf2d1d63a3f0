// Package chat proxies customer questions to an OpenAI-compatible model so
// the API key never leaves the server.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/infrastructure/llm"
)

const maxTurns = 20

type Request struct {
	Messages []llm.Message `json:"messages" validate:"required,min=1,max=20,dive"`
}

type Reply struct {
	Reply string `json:"reply"`
}

type Service interface {
	Reply(ctx context.Context, req Request) (*Reply, error)
}

type completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

type catalogStore interface {
	ListByKind(ctx context.Context, kind domain.CatalogKind, includeDisabled bool, limit int32, cursor string) ([]domain.CatalogItem, string, error)
}

type service struct {
	llm      completer
	catalog  catalogStore
	shopName string
	logger   *slog.Logger
}

type ServiceDeps struct {
	LLM         completer
	CatalogRepo catalogStore
	ShopName    string
	Logger      *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := deps.ShopName
	if name == "" {
		name = "the barbershop"
	}
	return &service{llm: deps.LLM, catalog: deps.CatalogRepo, shopName: name, logger: logger}
}

func (s *service) Reply(ctx context.Context, req Request) (*Reply, error) {
	turns := make([]llm.Message, 0, len(req.Messages)+1)
	turns = append(turns, llm.Message{Role: "system", Content: s.systemPrompt(ctx)})
	for _, m := range tail(req.Messages, maxTurns) {
		// Clients may not inject their own system instructions.
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 1 {
		return nil, fmt.Errorf("no user or assistant messages: %w", domain.ErrBadRequest)
	}

	out, err := s.llm.Complete(ctx, turns)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w: %v", domain.ErrDeliveryFailed, err)
	}
	return &Reply{Reply: strings.TrimSpace(out)}, nil
}

func (s *service) systemPrompt(ctx context.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the booking assistant for %s. Answer briefly and only about the shop, its services and appointments.", s.shopName)

	if s.catalog == nil {
		return b.String()
	}
	items, _, err := s.catalog.ListByKind(ctx, domain.KindService, false, 50, "")
	if err != nil {
		s.logger.Warn("chat: could not load services for prompt", "err", err)
		return b.String()
	}
	if len(items) > 0 {
		b.WriteString("\nServices offered:")
		for _, it := range items {
			fmt.Fprintf(&b, "\n- %s (%d min, price %d)", it.Name, it.DurationMinutes, it.Price)
		}
	}
	return b.String()
}

func tail(msgs []llm.Message, n int) []llm.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
