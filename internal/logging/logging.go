// Package logging builds the process logger and the interaction log.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger flavour.
type Options struct {
	// Format is "json" (default) or "console".
	Format  string
	Verbose bool
	// OutputPaths defaults to stderr.
	OutputPaths []string
}

// New builds the process logger.
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		config = zap.NewProductionConfig()
	case "console":
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	if opts.Verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.OutputPaths = []string{"stderr"}
	if len(opts.OutputPaths) > 0 {
		config.OutputPaths = opts.OutputPaths
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// InteractionFile is the interaction log name inside the log directory.
const InteractionFile = "bot_interactions.log"

// InteractionLog appends one line per answered mention:
//
//	timestamp|account|category|question_len|reply_len
type InteractionLog struct {
	logger *zap.Logger
	close  func()
}

// OpenInteractionLog opens (appending) path, creating its directory.
func OpenInteractionLog(path string) (*InteractionLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	sink, closeSink, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	return newInteractionLog(sink, closeSink), nil
}

// NewInteractionLog writes to ws. Useful with buffers in tests.
func NewInteractionLog(ws zapcore.WriteSyncer) *InteractionLog {
	return newInteractionLog(ws, func() {})
}

func newInteractionLog(ws zapcore.WriteSyncer, closeSink func()) *InteractionLog {
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		ConsoleSeparator: "|",
	})
	core := zapcore.NewCore(encoder, ws, zapcore.InfoLevel)
	return &InteractionLog{logger: zap.New(core), close: closeSink}
}

// Record appends one interaction. A nil log discards it.
func (l *InteractionLog) Record(account, category string, questionLen, replyLen int) {
	if l == nil {
		return
	}
	l.logger.Info(strings.Join([]string{
		sanitize(account),
		sanitize(category),
		strconv.Itoa(questionLen),
		strconv.Itoa(replyLen),
	}, "|"))
}

// Close flushes and closes the sink.
func (l *InteractionLog) Close() error {
	if l == nil {
		return nil
	}
	err := l.logger.Sync()
	l.close()
	return err
}

func sanitize(field string) string {
	return strings.NewReplacer("|", "/", "\n", " ", "\r", " ").Replace(field)
}
