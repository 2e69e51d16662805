package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/somesha/core"
)

// Logger writes structured logs through zap and reports them to rollbar.
type Logger struct {
	zl      *zap.SugaredLogger
	rollbar bool
}

var _ core.Logger = (*Logger)(nil)

// InitRollbar configures the global rollbar client; reporting is off in debug & test modes.
func InitRollbar(conf *core.Config) {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
}

// NewZap builds the base zap logger: development (console) output in debug mode, JSON otherwise.
func NewZap(conf *core.Config) (*zap.Logger, error) {
	if conf.TestMode {
		return zap.NewNop(), nil
	}
	zconf := zap.NewProductionConfig()
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
		zconf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zconf.InitialFields = map[string]interface{}{"env": conf.Env, "build": conf.Build}
	return zconf.Build(zap.AddCallerSkip(1))
}

// NewLogger returns a logger named after the component (API, DB, ADMIN, ...).
func NewLogger(base *zap.Logger, name string, conf *core.Config) *Logger {
	return &Logger{
		zl:      base.Named(name).Sugar(),
		rollbar: conf.RollbarToken != "" && !conf.Debug && !conf.TestMode,
	}
}

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return &Logger{zl: zap.NewNop().Sugar()}
}

// prepare splits args into rollbar's interface (msg | error, extras map) & zap key/value pairs.
// The first core.Person found becomes the rollbar person.
func (l Logger) prepare(msg string, args []interface{}) (report []interface{}, fields []interface{}) {
	var person *core.Person
	report = make([]interface{}, 0, len(args)+1)
	report = append(report, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case core.Person:
			if person == nil {
				p := v
				person = &p
				fields = append(fields, "user_id", v.ID)
			}
		case interface{ Person() core.Person }:
			if person == nil {
				p := v.Person()
				person = &p
				fields = append(fields, "user_id", p.ID)
			}
		case error:
			report = append(report, v)
			fields = append(fields, "error", v)
		case map[string]interface{}:
			report = append(report, v)
			for k, val := range v {
				fields = append(fields, k, val)
			}
		default:
			fields = append(fields, "extra", fmt.Sprintf("%+v", v))
		}
	}

	if l.rollbar {
		if person != nil {
			rollbar.SetPerson(person.ID, person.Username, person.Email)
		} else {
			rollbar.ClearPerson()
		}
	}
	return report, fields
}

func (l Logger) Debug(msg string, args ...interface{}) {
	report, fields := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Debug(report...)
	}
	l.zl.Debugw(msg, fields...)
}

func (l Logger) Info(msg string, args ...interface{}) {
	report, fields := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Info(report...)
	}
	l.zl.Infow(msg, fields...)
}

func (l Logger) Warn(msg string, args ...interface{}) {
	report, fields := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Warning(report...)
	}
	l.zl.Warnw(msg, fields...)
}

func (l Logger) Error(msg string, args ...interface{}) {
	report, fields := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Error(report...)
	}
	l.zl.Errorw(msg, fields...)
}

func (l Logger) Fatal(msg string, args ...interface{}) {
	report, fields := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Critical(report...)
		rollbar.Wait()
	}
	l.zl.Fatalw(msg, fields...)
}

// Sync flushes buffered log entries & pending rollbar reports.
func (l Logger) Sync() {
	_ = l.zl.Sync()
	if l.rollbar {
		rollbar.Wait()
	}
}
