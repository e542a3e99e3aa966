// Package logger wraps zap for the bundling pipeline:
//   - a global sugared logger writing console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields)
//     so each pipeline stage logs under its own name,
//   - level parsing and adjustment for the --log-level flag,
//   - leveled convenience functions (Infof, DebugKV, ErrorKV, ...).
//
// Pipeline stages receive a context and log through it, which keeps
// stdout free for listings and extracted payloads.
package logger
