package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redsponsor/redsponsor_backend/models"
	"github.com/redsponsor/redsponsor_backend/repositories"
	"github.com/redsponsor/redsponsor_backend/services"
)

// seedLineage creates accounts s1..sN where s1's sponsor is s2 and sN has no
// sponsor. It returns the handle of s1, the bottom of the lineage.
func seedLineage(store *repositories.MemoryStore, n int) string {
	for i := n; i >= 1; i-- {
		sponsor := ""
		if i < n {
			sponsor = fmt.Sprintf("s%d", i+1)
		}
		store.SeedAccount(&models.Account{
			Handle:        fmt.Sprintf("s%d", i),
			SponsorHandle: sponsor,
		})
	}
	if n == 0 {
		return ""
	}
	return "s1"
}

func TestWalk_ReturnsChainInAncestorOrder(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 4)
	walker := services.NewChainWalker(store)

	chain, cycle := walker.Walk(context.Background(), start, 10)

	require.Len(t, chain, 4)
	assert.False(t, cycle)
	for i, level := range chain {
		assert.Equal(t, i+1, level.Depth)
		assert.Equal(t, fmt.Sprintf("s%d", i+1), level.Account.Handle)
	}
}

func TestWalk_EmptyStartHandle(t *testing.T) {
	store := repositories.NewMemoryStore()
	walker := services.NewChainWalker(store)

	chain, cycle := walker.Walk(context.Background(), "", 10)

	assert.Empty(t, chain)
	assert.False(t, cycle)
}

func TestWalk_TruncatesAtMaxDepth(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 6)
	walker := services.NewChainWalker(store)

	chain, cycle := walker.Walk(context.Background(), start, 3)

	assert.Len(t, chain, 3)
	assert.False(t, cycle)
}

func TestWalk_UnresolvedSponsorEndsChain(t *testing.T) {
	store := repositories.NewMemoryStore()
	store.SeedAccount(&models.Account{Handle: "alice", SponsorHandle: "ghost"})
	walker := services.NewChainWalker(store)

	chain, cycle := walker.Walk(context.Background(), "alice", 10)

	// Short chains are normal, not errors
	require.Len(t, chain, 1)
	assert.Equal(t, "alice", chain[0].Account.Handle)
	assert.False(t, cycle)
}

func TestWalk_CycleTerminatesWithoutDuplicates(t *testing.T) {
	store := repositories.NewMemoryStore()
	store.SeedAccount(&models.Account{Handle: "a", SponsorHandle: "b"})
	store.SeedAccount(&models.Account{Handle: "b", SponsorHandle: "c"})
	store.SeedAccount(&models.Account{Handle: "c", SponsorHandle: "a"})
	walker := services.NewChainWalker(store)

	chain, cycle := walker.Walk(context.Background(), "a", 10)

	assert.True(t, cycle)
	require.Len(t, chain, 3)
	seen := make(map[string]bool)
	for _, level := range chain {
		assert.False(t, seen[level.Account.Handle], "no handle may repeat")
		seen[level.Account.Handle] = true
	}
}

func TestWalk_SelfSponsorIsACycle(t *testing.T) {
	store := repositories.NewMemoryStore()
	store.SeedAccount(&models.Account{Handle: "loner", SponsorHandle: "loner"})
	walker := services.NewChainWalker(store)

	chain, cycle := walker.Walk(context.Background(), "loner", 10)

	assert.True(t, cycle)
	assert.Len(t, chain, 1)
}
