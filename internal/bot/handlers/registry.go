package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler describes a command handler and its middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands returns the admin commands keyed by command name.
// Channel posts are not commands; see NewSourceRecorder.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}

	command := func(pattern string, h tgbot.HandlerFunc) RegisteredHandler {
		return RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     h,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  adminMiddleware,
		}
	}

	return map[string]RegisteredHandler{
		"/start":   command("start", NewStartHandler(deps)),
		"/help":    command("help", NewStartHandler(deps)),
		"/markup":  command("markup", NewMarkupHandler(deps)),
		"/ingest":  command("ingest", NewIngestHandler(deps)),
		"/stats":   command("stats", NewStatsHandler(deps)),
		"/getauto": command("getauto", NewGetAutoHandler(deps)),
	}
}
