// Package pathoram implements the Path ORAM protocol for oblivious block
// storage. A client-side engine keeps a position map and a bounded stash
// and stores fixed-size blocks in a complete binary tree of buckets held
// by an untrusted server, so that the server's view of each access is a
// uniformly random root-to-leaf path independent of the block requested.
//
// The engine's external dependencies are pluggable: Storage for the
// server tree, PositionMap for leaf assignments, Encryptor for the
// payload boundary, and LeafSource for leaf sampling. NewInMemory wires
// the in-process defaults for local use and testing.
package pathoram
