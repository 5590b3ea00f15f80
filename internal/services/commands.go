package services

import (
	"strings"
)

// Intent is the structured meaning of an inbound message body.
type Intent int

const (
	// IntentIngest: default path, store the message as a memory.
	IntentIngest Intent = iota
	// IntentList: "/list [range]".
	IntentList
	// IntentSearch: "/search <query>", or an implicit question.
	IntentSearch
)

// Command is a parsed inbound message.
type Command struct {
	Intent Intent
	Arg    string
}

// ParseIntent recognizes intents by priority order: a leading-slash command
// first ("/list", "/search"; any other slash token falls through to ingest),
// then an implicit query (body contains "?" and the message carries no
// media), otherwise default ingestion.
func ParseIntent(body string, hasMedia bool) Command {
	body = strings.TrimSpace(body)

	if strings.HasPrefix(body, "/") {
		cmd, arg, _ := strings.Cut(body, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(cmd) {
		case "/list":
			return Command{Intent: IntentList, Arg: arg}
		case "/search":
			return Command{Intent: IntentSearch, Arg: arg}
		}
		// Unknown command: treated as ordinary text, not an error.
		return Command{Intent: IntentIngest}
	}

	if body != "" && strings.Contains(body, "?") && !hasMedia {
		return Command{Intent: IntentSearch, Arg: body}
	}

	return Command{Intent: IntentIngest}
}
