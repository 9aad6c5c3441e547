// Package textutil provides title normalization and fuzzy name matching
// helpers shared by store resolution and actor verification.
package textutil
