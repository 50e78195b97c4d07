// Package archive reads a packed npm tarball back and compares it with the
// directory it was packed from.
package archive
