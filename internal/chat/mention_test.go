package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var (
	alice = Member{UserID: uuid.New(), Name: "Alice Okello"}
	amos  = Member{UserID: uuid.New(), Name: "Amos"}
	bob   = Member{UserID: uuid.New(), Name: "Bob Mwangi"}
	ann   = Member{UserID: uuid.New(), Name: "Ann"}
	annK  = Member{UserID: uuid.New(), Name: "Ann Kato"}
)

func TestActiveMention(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		cursor int
		query  string
		at     int
		ok     bool
	}{
		{name: "start of text", text: "@al", cursor: 3, query: "al", at: 0, ok: true},
		{name: "after space", text: "hi @bo", cursor: 6, query: "bo", at: 3, ok: true},
		{name: "bare at", text: "hi @", cursor: 4, query: "", at: 3, ok: true},
		{name: "email is not a mention", text: "mail bob@school", cursor: 15, ok: false, at: -1},
		{name: "space after query", text: "@al hello", cursor: 9, ok: false, at: -1},
		{name: "cursor mid text", text: "@al hello", cursor: 2, query: "a", at: 0, ok: true},
		{name: "no at", text: "hello", cursor: 5, ok: false, at: -1},
		{name: "cursor out of range", text: "x @am", cursor: 99, query: "am", at: 2, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, at, ok := ActiveMention(tt.text, tt.cursor)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.query, q)
			assert.Equal(t, tt.at, at)
		})
	}
}

func TestSuggest(t *testing.T) {
	members := []Member{bob, amos, alice}

	got := Suggest(members, "a", uuid.Nil, 10)
	assert.Equal(t, []Member{alice, amos}, got)

	got = Suggest(members, "mwa", uuid.Nil, 10)
	assert.Equal(t, []Member{bob}, got)

	got = Suggest(members, "", alice.UserID, 10)
	assert.Equal(t, []Member{amos, bob}, got)

	got = Suggest(members, "", uuid.Nil, 1)
	assert.Equal(t, []Member{alice}, got)
}

func TestComplete(t *testing.T) {
	text, cursor := Complete("hello @al", 9, alice)

	assert.Equal(t, "hello @Alice Okello ", text)
	assert.Equal(t, len([]rune(text)), cursor)

	text, cursor = Complete("no mention", 3, alice)
	assert.Equal(t, "no mention", text)
	assert.Equal(t, 3, cursor)
}

func TestExtractMentions(t *testing.T) {
	members := []Member{ann, annK, bob}

	got := ExtractMentions("@Ann Kato and @ann, see @Bob Mwangi. cc @bob mwangi", members)
	assert.Equal(t, []uuid.UUID{annK.UserID, ann.UserID, bob.UserID}, got)

	assert.Empty(t, ExtractMentions("mail ann@school.org", members))
	assert.Empty(t, ExtractMentions("@Annabel hi", members))
}

func TestIsUnread(t *testing.T) {
	reader := uuid.New()
	other := uuid.New()
	mark := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, IsUnread(other, mark.Add(time.Second), reader, mark))
	assert.False(t, IsUnread(reader, mark.Add(time.Second), reader, mark))
	assert.False(t, IsUnread(other, mark, reader, mark))
}
