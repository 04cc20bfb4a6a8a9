package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

// RollbarLogger reports to Rollbar and mirrors every entry to a std logger.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is a log call split into what Rollbar understands.
type entry struct {
	msg    string
	err    error
	extras map[string]interface{}
	acc    *account.Account
	rest   []interface{}
}

// newEntry sorts args: errors, extras maps (merged), the first account and anything else.
func newEntry(msg string, args []interface{}) entry {
	e := entry{msg: msg, extras: make(map[string]interface{})}
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			if e.err == nil {
				e.err = v
				continue
			}
			e.rest = append(e.rest, v)
		case map[string]interface{}:
			for k, val := range v {
				e.extras[k] = val
			}
		case account.Account:
			if e.acc == nil {
				acc := v
				e.acc = &acc
			}
		default:
			e.rest = append(e.rest, v)
		}
	}
	if e.acc != nil {
		e.extras["account_role"] = e.acc.Role.String()
		e.extras["account_official"] = e.acc.IsOfficial
	}
	for i, v := range e.rest {
		e.extras["arg"+strconv.Itoa(i)] = fmt.Sprint(v)
	}
	return e
}

// rollbarArgs returns the arguments for rollbar.Log and sets the person.
func (e entry) rollbarArgs() []interface{} {
	if e.acc != nil {
		rollbar.SetPerson(strconv.FormatInt(e.acc.ID, 10), e.acc.Username, e.acc.Email)
	} else {
		rollbar.ClearPerson()
	}

	out := []interface{}{e.msg}
	if e.err != nil {
		out = []interface{}{pkgerrors.WithMessage(e.err, e.msg)}
	}
	if len(e.extras) > 0 {
		out = append(out, e.extras)
	}
	return out
}

// String renders the entry on one line, extras sorted by key.
func (e entry) String() string {
	var b strings.Builder
	b.WriteString(e.msg)
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}
	if e.acc != nil {
		fmt.Fprintf(&b, " account=%d", e.acc.ID)
	}
	keys := make([]string, 0, len(e.extras))
	for k := range e.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.extras[k])
	}
	return b.String()
}

func (l RollbarLogger) report(level, msg string, args []interface{}) {
	e := newEntry(msg, args)
	rollbar.Log(level, e.rollbarArgs()...)
	l.std.Printf("[%s] %s", strings.ToUpper(level), e)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal("exiting: ", msg)
}
