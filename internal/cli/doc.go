// Parses flags and dispatches the kilnd subcommands.
//
// All subcommands accept the following flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//	-s, --socket    Unix socket path.
//
// Flags override build-time defaults set via linker flags. After parsing,
// the global log level is adjusted to reflect the final modes before the
// selected subcommand runs.
//
// The start subcommand runs the daemon in the foreground; every other
// subcommand is a one-shot client of the daemon socket.
package cli
