package chat

import "go.uber.org/zap"

// Notifier carries transient user notifications out of the controller. The
// presentation layer decides how to show them.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

// LogNotifier reports notifications through the server log, for deployments
// without an interactive notification surface.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Success(msg string) { n.Logger.Info(msg) }
func (n *LogNotifier) Error(msg string)   { n.Logger.Warn(msg) }
