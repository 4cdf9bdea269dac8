// Package logx is telewatch's thin structured-logging layer over zerolog.
// It keeps console output readable (short timestamp, short caller), file
// output JSON-structured, and lets the level and sinks be swapped at
// runtime through Service.Apply without invalidating existing loggers.
package logx
