// Package logger wraps zap for the assembler binaries:
//   - a global sugared logger writing console lines to stdout,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag.
//
// Every step of the assembly receives a context and logs through it, so the
// logger name and key-values follow the run.
package logger
