// Provides the slog handler used by cpbuild.
//
// The [Handler] buffers records until the CLI has parsed its flags, then
// flushes them to the configured stream with the final level applied. This
// lets the entry point log startup information before it knows whether the
// user asked for --quiet or --debug.
//
// Output is a single line per record: a level tag, the message, and the
// record attributes as key=value pairs. Level tags are coloured with
// gookit/color when the stream is an interactive terminal. Verbose mode
// prefixes each line with a timestamp.
//
// Example usage:
//
//	handler := logging.NewHandler()
//	slog.SetDefault(slog.New(handler))
//
//	slog.Info("starting") // buffered
//
//	handler.SetLevel(slog.LevelDebug)
//	handler.SetStream(os.Stderr, logging.IsTerminal(os.Stderr))
//	handler.Flush() // writes "starting"
package logging
