package interfaces

import "hb-market-api/internal/types"

// SnapshotStore is the last-writer-wins cache shared between the supervisor
// (sole writer) and the HTTP handlers (readers). All read methods return
// copies, never references into the store.
type SnapshotStore interface {
	Upsert(class types.Class, ticker string, q types.Quote)
	UpsertRepo(r types.RepoRate)
	All(class types.Class) []types.Quote
	ByTicker(class types.Class, ticker string) (types.Quote, bool)
	ByPrefix(class types.Class, prefix string) []types.Quote
	Repos() []types.RepoRate
	Count(class types.Class) int
}
