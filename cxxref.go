// Package cxxref indexes the bodies of C++ functions and global variable
// initializers into a queryable relation graph built on tree-sitter and
// SQLite.
package cxxref

// Version is reported by the CLI and the MCP server.
const Version = "0.3.0"

// indexFormat identifies the layout of the rows the engine writes. Bump it
// whenever USRs, node kinds or edge kinds change meaning.
const indexFormat = "cxx-body-graph/1"
