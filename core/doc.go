// Package core defines the domain model for pm.
//
// The core package provides:
//   - Domain types (Project, Sample, RunFolder identity, delivery records)
//   - Status constants and their validation methods
//   - Naming helpers for sequencing runs and sample runs
//
// Types here carry no storage or transport concerns; storage backends and
// controllers depend on core, never the other way around.
package core
