// services/chain.go
package services

import (
	"context"

	"github.com/redsponsor/redsponsor_backend/models"
)

// SponsorResolver resolves a sponsor handle to its account. The repository
// Store satisfies it.
type SponsorResolver interface {
	AccountByHandle(ctx context.Context, handle string) (*models.Account, error)
}

// ChainLevel is one resolved ancestor: Depth 1 is the immediate sponsor.
type ChainLevel struct {
	Depth   int
	Account *models.Account
}

// ChainWalker materializes the ordered ancestor chain for a starting sponsor
// handle. It performs no writes and is safe for concurrent use.
type ChainWalker struct {
	resolver SponsorResolver
}

func NewChainWalker(resolver SponsorResolver) *ChainWalker {
	return &ChainWalker{resolver: resolver}
}

// Walk follows declared sponsors from startHandle up to maxDepth levels. A
// handle that fails to resolve ends the chain (short chains are normal, not
// errors). A handle seen twice means the sponsor graph is corrupted; the walk
// stops there and reports the cycle so the caller can flag it, because a bad
// graph must never block a legitimate payment.
func (w *ChainWalker) Walk(ctx context.Context, startHandle string, maxDepth int) ([]ChainLevel, bool) {
	var chain []ChainLevel
	visited := make(map[string]bool)

	current := startHandle
	for level := 1; level <= maxDepth; level++ {
		if current == "" {
			break
		}
		if visited[current] {
			return chain, true
		}

		account, err := w.resolver.AccountByHandle(ctx, current)
		if err != nil {
			break
		}

		visited[current] = true
		chain = append(chain, ChainLevel{Depth: level, Account: account})
		current = account.SponsorHandle
	}

	return chain, false
}
