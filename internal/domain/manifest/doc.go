// Package manifest reads the package.json fields the assembler relies on and
// derives archive filenames from them.
package manifest
