// Package chat holds the message-composition rules shared by the chat service:
// @mention autocomplete, mention extraction and read tracking.
package chat

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Member is a group member as the composer sees it
type Member struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
}

// ActiveMention finds the mention being typed at cursor (a rune offset).
// It returns the text typed after '@' and the rune offset of the '@'.
// The '@' must start the text or follow whitespace, and no whitespace may
// sit between it and the cursor.
func ActiveMention(text string, cursor int) (query string, at int, ok bool) {
	runes := []rune(text)
	if cursor < 0 || cursor > len(runes) {
		cursor = len(runes)
	}
	for i := cursor - 1; i >= 0; i-- {
		r := runes[i]
		if unicode.IsSpace(r) {
			return "", -1, false
		}
		if r == '@' {
			if i > 0 && !unicode.IsSpace(runes[i-1]) {
				return "", -1, false
			}
			return string(runes[i+1 : cursor]), i, true
		}
	}
	return "", -1, false
}

// Suggest returns members matching query, sorted by name and capped at limit.
// A member matches when any word of the name, or the whole name, starts with
// query (case-insensitive). exclude is typically the author.
func Suggest(members []Member, query string, exclude uuid.UUID, limit int) []Member {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if m.UserID == exclude {
			continue
		}
		if q == "" || matches(m.Name, q) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func matches(name, q string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, q) {
		return true
	}
	for _, w := range strings.Fields(lower) {
		if strings.HasPrefix(w, q) {
			return true
		}
	}
	return false
}

// Complete replaces the mention being typed at cursor with "@Name " and
// returns the new text and cursor. Text is returned unchanged when no
// mention is active.
func Complete(text string, cursor int, m Member) (string, int) {
	_, at, ok := ActiveMention(text, cursor)
	runes := []rune(text)
	if !ok {
		return text, cursor
	}
	if cursor < 0 || cursor > len(runes) {
		cursor = len(runes)
	}
	insert := []rune("@" + m.Name + " ")
	out := make([]rune, 0, len(runes)+len(insert))
	out = append(out, runes[:at]...)
	out = append(out, insert...)
	out = append(out, runes[cursor:]...)
	return string(out), at + len(insert)
}

// ExtractMentions returns the ids of members mentioned in body, in order of
// first mention. When several names match at one '@', the longest wins.
func ExtractMentions(body string, members []Member) []uuid.UUID {
	byLen := make([]Member, len(members))
	copy(byLen, members)
	sort.SliceStable(byLen, func(i, j int) bool {
		return len([]rune(byLen[i].Name)) > len([]rune(byLen[j].Name))
	})

	runes := []rune(body)
	lower := lowerRunes(body)
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID

	for i, r := range runes {
		if r != '@' || (i > 0 && !unicode.IsSpace(runes[i-1])) {
			continue
		}
		rest := lower[i+1:]
		for _, m := range byLen {
			name := lowerRunes(m.Name)
			if len(name) == 0 || len(name) > len(rest) || string(rest[:len(name)]) != string(name) {
				continue
			}
			if len(rest) > len(name) && isWordRune(rest[len(name)]) {
				continue
			}
			if !seen[m.UserID] {
				seen[m.UserID] = true
				out = append(out, m.UserID)
			}
			break
		}
	}
	return out
}

// rune-by-rune so offsets line up with the original text
func lowerRunes(s string) []rune {
	out := []rune(s)
	for i, r := range out {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// IsUnread reports whether a message counts as unread for reader: it was sent
// by someone else after the reader's last read mark.
func IsUnread(senderID uuid.UUID, sentAt time.Time, reader uuid.UUID, lastRead time.Time) bool {
	return senderID != reader && sentAt.After(lastRead)
}
