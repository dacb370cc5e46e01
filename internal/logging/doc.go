// Package logging provides structured logging for test-run pipelines.
//
// This package wraps Go's log/slog to produce JSON-formatted logs with
// persistent context attributes, so that interleaved runs of several
// pipelines in one session can be told apart after the fact.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithPipeline(p.ID()).WithStage("progress")
//	runLogger.Warn("task report failed", "task_id", taskID, "error", err)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"task report failed","pipeline_id":"...","stage":"progress","task_id":"T1","error":"..."}
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] to capture it:
//
//	var buf bytes.Buffer
//	logger := logging.NewWriterLogger(&buf, logging.LevelDebug)
//
// # Configuration
//
//	logging:
//	  level: info
//	  dir: ~/.local/state/testrun
package logging
