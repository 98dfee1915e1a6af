package framework

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger interface {
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (n nullLogger) Printf(message string, args ...interface{}) {}

func NullLogger() Logger { return nullLogger{} }

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (z zapLogger) Printf(message string, args ...interface{}) {
	z.sugar.Debugf(message, args...)
}

// ZapLogger adapts a zap logger to the Logger interface. Messages are logged at debug level,
// so they only appear when the process logger was built with verbose output.
func ZapLogger(l *zap.Logger) Logger {
	if l == nil {
		return NullLogger()
	}
	return zapLogger{sugar: l.Sugar()}
}

type CapturedMessage struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

type CapturedOutput []CapturedMessage

// CapturingLogger accumulates messages in memory. If Forward is set, every message is also
// passed on to it.
type CapturingLogger struct {
	Forward Logger
	output  []CapturedMessage
	lock    sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)})
	l.lock.Unlock()
	if l.Forward != nil {
		l.Forward.Printf(message, args...)
	}
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append([]CapturedMessage(nil), l.output...)
	l.lock.Unlock()
	return ret
}

func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		fmt.Fprintf(dest, "%s[%s] %s\n",
			prefix,
			m.Time.Format(timestampFormat),
			m.Message,
		)
	}
}
