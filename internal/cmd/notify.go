package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/Iron-Ham/testrun/internal/logging"
)

// writerNotifier prints user-facing notifications and logs them.
type writerNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	logger *logging.Logger
}

func newWriterNotifier(w io.Writer, logger *logging.Logger) *writerNotifier {
	return &writerNotifier{w: w, logger: logger.With("channel", "notify")}
}

func (n *writerNotifier) Info(msg string) {
	n.logger.Info(msg)
	n.print("info", msg)
}

func (n *writerNotifier) Warn(msg string) {
	n.logger.Warn(msg)
	n.print("warning", msg)
}

func (n *writerNotifier) Error(msg string) {
	n.logger.Error(msg)
	n.print("error", msg)
}

func (n *writerNotifier) print(level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "%s: %s\n", level, msg)
}
