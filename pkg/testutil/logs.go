package testutil

import (
	"bytes"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogBuffer collects JSON log lines written by a test logger.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CountLevel returns how many lines were logged at level.
func (b *LogBuffer) CountLevel(level zerolog.Level) int {
	needle := `"level":"` + level.String() + `"`
	n := 0
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.Contains(line, needle) {
			n++
		}
	}
	return n
}

// NewLogger returns a debug level JSON logger writing into a LogBuffer.
// Hooks are attached in order.
func NewLogger(hooks ...zerolog.Hook) (zerolog.Logger, *LogBuffer) {
	buf := &LogBuffer{}
	logger := zerolog.New(buf).Level(zerolog.DebugLevel)
	for _, h := range hooks {
		logger = logger.Hook(h)
	}
	return logger, buf
}
