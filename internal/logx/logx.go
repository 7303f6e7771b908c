package logx

import (
	"context"

	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	sessionKey contextKey = iota
	bufferKey
	commandKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with the session id if present.
func WithSession(ctx context.Context, sessionID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(string); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithBuffer annotates the logger with a buffer identifier.
func WithBuffer(ctx context.Context, bufferID schema.BufferID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if bufferID != "" {
		if current, ok := ctx.Value(bufferKey).(schema.BufferID); ok && current == bufferID {
			return log
		}
		log = log.With("buffer", bufferID)
	}
	return log
}

// WithCommand annotates the logger with a command invocation identifier.
func WithCommand(ctx context.Context, commandID schema.CommandID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if commandID != "" {
		if current, ok := ctx.Value(commandKey).(schema.CommandID); ok && current == commandID {
			return log
		}
		log = log.With("command", commandID)
	}
	return log
}

// WithPath annotates the logger with a file path when available.
func WithPath(log pslog.Logger, path string) pslog.Logger {
	if path != "" {
		log = log.With("path", path)
	}
	return log
}

// ContextWithSessionLogger attaches the logger and session marker to the context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, sessionID string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithCommandLogger attaches the logger and command marker to the context.
func ContextWithCommandLogger(ctx context.Context, log pslog.Logger, commandID schema.CommandID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	if commandID == "" {
		return ctx
	}
	return context.WithValue(ctx, commandKey, commandID)
}

// CopyContextFields copies session/command markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if session, ok := src.Value(sessionKey).(string); ok && session != "" {
		dst = context.WithValue(dst, sessionKey, session)
	}
	if command, ok := src.Value(commandKey).(schema.CommandID); ok && command != "" {
		dst = context.WithValue(dst, commandKey, command)
	}
	return dst
}
