// Package store persists the single cached session of this device.
//
// The session secret is encrypted before every write and decrypted on load;
// every other field is stored as-is. Exactly one record exists: Save replaces
// it, Clear removes it.
//
// Persistence is delegated to a Backend, an openable keyed record store. The
// Store opens the backend lazily and, when an operation reports ErrClosed,
// reopens it once and retries once before failing with ErrStorage.
//
// Backends: FileBackend (default for the CLI), MemoryBackend, RedisBackend and
// PostgresBackend.
package store
