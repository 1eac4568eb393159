package adapter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kapu/shortlist-go/internal/command"
	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/util"
)

var (
	controlCharsPattern = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// ActionHelp is the local action that prints usage.
const ActionHelp = "help"

// MessageAdapter converts chat lines to session actions.
type MessageAdapter struct {
	prefix string
}

// NewMessageAdapter creates a new MessageAdapter
func NewMessageAdapter(prefix string) *MessageAdapter {
	if strings.TrimSpace(prefix) == "" {
		prefix = "!"
	}
	return &MessageAdapter{prefix: prefix}
}

// ParsedCommand represents a parsed line. Event.Action is empty when the
// line means nothing.
type ParsedCommand struct {
	Event      command.ActionEvent
	RawMessage string
}

// Known reports whether the line mapped to an action.
func (p *ParsedCommand) Known() bool {
	return p != nil && p.Event.Action != ""
}

// ParseMessage parses one line. Text without the prefix is a new query.
func (ma *MessageAdapter) ParseMessage(message string) *ParsedCommand {
	text := strings.TrimSpace(message)
	if text == "" {
		return ma.createUnknownCommand("")
	}

	if !strings.HasPrefix(text, ma.prefix) {
		query := ma.sanitizeQuery(text)
		if query == "" {
			return ma.createUnknownCommand(text)
		}
		return ma.newCommand(command.ActionSubmit, map[string]any{"query": query}, text)
	}

	commandText := strings.TrimSpace(text[len(ma.prefix):])
	parts := strings.Fields(commandText)
	if len(parts) == 0 {
		return ma.createUnknownCommand(text)
	}

	cmd := util.Normalize(parts[0])
	args := parts[1:]
	rest := strings.TrimSpace(strings.Join(args, " "))

	switch {
	case ma.isSearchCommand(cmd):
		query := ma.sanitizeQuery(rest)
		if query == "" {
			return ma.createUnknownCommand(text)
		}
		return ma.newCommand(command.ActionSubmit, map[string]any{"query": query}, text)

	case util.Contains([]string{"surprise", "surprends-moi", "hasard"}, cmd):
		return ma.newCommand(command.ActionSurprise, nil, text)

	case util.Contains([]string{"pas", "non", "reject", "rejeter"}, cmd):
		return ma.parseSlotCommand(command.ActionReject, args, text)

	case util.Contains([]string{"garde", "oui", "accept", "garder"}, cmd):
		return ma.parseSlotCommand(command.ActionAccept, args, text)

	case util.Contains([]string{"relance", "reset", "encore"}, cmd):
		return ma.newCommand(command.ActionReset, nil, text)

	case util.Contains([]string{"categorie", "catégorie", "category", "cat"}, cmd):
		return ma.parseCategoryCommand(args, text)

	case util.Contains([]string{"filtre", "filter"}, cmd):
		return ma.newCommand(command.ActionCategory, map[string]any{"sub_filter": rest}, text)

	case util.Contains([]string{"connexion", "login", "moi"}, cmd):
		return ma.newCommand(command.ActionSignIn, map[string]any{"identity": rest}, text)

	case util.Contains([]string{"deconnexion", "déconnexion", "logout"}, cmd):
		return ma.newCommand(command.ActionSignOut, nil, text)

	case util.Contains([]string{"biblio", "bibliotheque", "bibliothèque", "library"}, cmd):
		return ma.newCommand(command.ActionLibrary, map[string]any{"search": rest}, text)

	case util.Contains([]string{"favori", "fav", "favorite"}, cmd):
		return ma.parseTitleCommand(command.ActionFavorite, rest, text)

	case util.Contains([]string{"retirer", "supprimer", "delete"}, cmd):
		return ma.parseTitleCommand(command.ActionDelete, rest, text)

	case util.Contains([]string{"note", "rate", "rating"}, cmd):
		return ma.parseRatingCommand(args, text)

	case util.Contains([]string{"aide", "help", "commandes"}, cmd):
		return ma.newCommand(ActionHelp, nil, text)
	}

	return ma.createUnknownCommand(text)
}

func (ma *MessageAdapter) isSearchCommand(cmd string) bool {
	return util.Contains([]string{"cherche", "recherche", "search", "comme"}, cmd)
}

// parseSlotCommand reads a 1-based position as typed by people.
func (ma *MessageAdapter) parseSlotCommand(action string, args []string, raw string) *ParsedCommand {
	if len(args) == 0 {
		return ma.createUnknownCommand(raw)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > constants.BatchConfig.Size {
		return ma.createUnknownCommand(raw)
	}
	return ma.newCommand(action, map[string]any{"index": n - 1}, raw)
}

func (ma *MessageAdapter) parseCategoryCommand(args []string, raw string) *ParsedCommand {
	if len(args) == 0 {
		return ma.createUnknownCommand(raw)
	}
	params := map[string]any{"category": args[0]}
	if len(args) > 1 {
		params["sub_filter"] = strings.Join(args[1:], " ")
	}
	return ma.newCommand(command.ActionCategory, params, raw)
}

func (ma *MessageAdapter) parseTitleCommand(action, title, raw string) *ParsedCommand {
	if title == "" {
		return ma.createUnknownCommand(raw)
	}
	return ma.newCommand(action, map[string]any{"title": title}, raw)
}

// parseRatingCommand reads "<rating> <title>".
func (ma *MessageAdapter) parseRatingCommand(args []string, raw string) *ParsedCommand {
	if len(args) < 2 {
		return ma.createUnknownCommand(raw)
	}
	rating, err := strconv.Atoi(args[0])
	if err != nil {
		return ma.createUnknownCommand(raw)
	}
	return ma.newCommand(command.ActionRating, map[string]any{
		"rating": rating,
		"title":  strings.Join(args[1:], " "),
	}, raw)
}

func (ma *MessageAdapter) newCommand(action string, params map[string]any, raw string) *ParsedCommand {
	if params == nil {
		params = make(map[string]any)
	}
	return &ParsedCommand{
		Event:      command.ActionEvent{Action: action, Params: params},
		RawMessage: raw,
	}
}

func (ma *MessageAdapter) createUnknownCommand(text string) *ParsedCommand {
	return &ParsedCommand{
		Event:      command.ActionEvent{Params: make(map[string]any)},
		RawMessage: text,
	}
}

func (ma *MessageAdapter) sanitizeQuery(input string) string {
	withoutControl := controlCharsPattern.ReplaceAllString(input, " ")
	normalized := strings.TrimSpace(whitespacePattern.ReplaceAllString(withoutControl, " "))
	return util.TruncateString(normalized, constants.GenerationConfig.MaxQueryLength)
}
