// Package mock provides deterministic test doubles for the ai package.
//
// MockEmbedder produces FNV-seeded pseudo-random vectors so that identical
// text always embeds to the identical vector, records every text it was
// asked to embed, and supports failure injection through function fields.
package mock
