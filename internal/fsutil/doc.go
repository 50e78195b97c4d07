// Package fsutil holds the filesystem steps of an assembly: tree copy,
// u+w fixups for read-only build outputs, removal and moves.
package fsutil
