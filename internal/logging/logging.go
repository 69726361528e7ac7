// Package logging centralizes the logrus setup every other internal
// package calls into ad hoc today: output stream, level, and the
// part/step/action field convention used throughout planning and
// execution (spec.md §9's ambient logging concern). Grounded on the
// teacher pack's own logrus entrypoint setup (coreos-coreos-assembler's
// gangplank, log.SetOutput/log.SetLevel at startup).
package logging

import (
	"fmt"
	"os"

	"github.com/partcraft/partcraft/internal/steps"
	"github.com/sirupsen/logrus"
)

// Setup configures the package-level logrus logger from a textual level
// name ("trace", "debug", "info", "warn", "error") and writes to stderr,
// leaving stdout free for command output. An empty level defaults to
// "info".
func Setup(level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// ForPart returns a logrus.Entry tagged with partName, the fixed
// "part" field every other package's log lines are expected to carry.
func ForPart(partName string) *logrus.Entry {
	return logrus.WithField("part", partName)
}

// ForStep returns a logrus.Entry tagged with part and step, the pairing
// used by handler/lifecycle log lines around a single step's execution.
func ForStep(partName string, step steps.Step) *logrus.Entry {
	return ForPart(partName).WithField("step", step.String())
}

// ForAction returns a logrus.Entry tagged with part, step, and action,
// matching the fields lifecycle.Manager.Execute attaches to each
// dispatched action.
func ForAction(partName string, step steps.Step, action string) *logrus.Entry {
	return ForStep(partName, step).WithField("action", action)
}
