// Package history persists speaker field changes to SQLite.
//
// Every info field the bridge publishes (volume, audio source, equaliser
// profile, media metadata) can optionally be recorded here, one row per
// change, so past values survive restarts and can be queried over the
// HTTP API.
//
// The store is a thin repository over the database package:
//
//	db, _ := database.Open(cfg.Database)
//	store := history.NewStore(db)
//	store.Record("volume", "17")
//	entries, _ := store.Recent(ctx, "volume", 20)
//
// Record carries no context because it sits on the publish hot path; it
// applies its own short timeout instead. Reads and pruning take a caller
// context as usual.
package history
