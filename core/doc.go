// Package core contains the registrar domain contracts, entities, and
// lifecycle orchestration. Lower-level adapters must depend on this package;
// core must not depend on provider-specific or transport-specific adapters.
package core
