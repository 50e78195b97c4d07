// Package assembler builds an npm package with the configured build system and
// lays it out for downstream tests.
//
// A run builds the target, packs the build output into an archive, copies
// the output tree to <destination>/<package-name> and moves the archive to
// <destination>/archive/<package-name><ext>. Steps run in order and the first
// failure stops the run; files already written stay where they are.
package assembler
