// Package mock provides deterministic test doubles for the ai package
// interfaces. The doubles allow custom behavior injection via function
// fields and default to reproducible, hash-derived outputs.
package mock
