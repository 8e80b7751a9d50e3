// Package sqlite contains SQLite repository implementations for projection
// results.
//
// All database reads and writes for projection runs belong here rather
// than in the pipeline package, keeping the geometry free of SQL.
package sqlite
