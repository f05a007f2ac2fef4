// Package cache implements the disk-backed response cache: URLs are hashed to
// <CachePath>/<hash[0:2]>/<hash>.data (gzip body) and .meta (JSON status +
// headers) pairs, expiry is derived from the .meta file's modtime, and a
// Sweeper reclaims expired pairs through startup/periodic walks plus one-shot
// per-write timers. Absence, expiry and corruption all collapse into
// ErrNotFound so callers never have to distinguish them from a cold miss.
package cache
