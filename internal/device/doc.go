// Package device keeps the inventory of FHT80b thermostats seen by the bridge.
//
// Each thermostat is keyed by its house code and carries the latest display
// value for every command it has reported (no history). Rows come from two
// places: the devices section of the config file (SeedDevices) and frames
// decoded on the radio link (RecordMessage).
//
// # Key Types
//
//   - Thermostat: one house code with name, last-seen time and state
//   - Repository: persistence interface, implemented by SQLiteRepository
//   - Registry: cached, thread-safe front used by the bridge and the API
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.SeedDevices(ctx, seeds); err != nil {
//	    return err
//	}
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
// The thermostats table is created by the embedded migrations in package
// migrations.
package device
