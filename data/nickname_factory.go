package data

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxNicknameLength is the longest nickname the lobby accepts, in characters.
const MaxNicknameLength = 32

const nicknameSuffixLength = 8

// NicknameFactory produces nicknames that are unique across test runs, so that a test sharing a
// lobby with other runs can still tell its own player apart. Each nickname is the prefix followed
// by a random suffix, and never exceeds MaxNicknameLength.
type NicknameFactory struct {
	prefix string
	byKey  *MemoizingFactory[string, string]
}

// NewNicknameFactory creates a factory. The prefix is shortened if needed to leave room for the
// random suffix.
func NewNicknameFactory(prefix string) *NicknameFactory {
	maxPrefix := MaxNicknameLength - nicknameSuffixLength
	for utf8.RuneCountInString(prefix) > maxPrefix {
		_, size := utf8.DecodeLastRuneInString(prefix)
		prefix = prefix[:len(prefix)-size]
	}
	f := &NicknameFactory{prefix: prefix}
	f.byKey = NewMemoizingFactory(func(string) string { return f.Next() })
	return f
}

// Next returns a new nickname every time.
func (f *NicknameFactory) Next() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:nicknameSuffixLength]
	return f.prefix + suffix
}

// Get returns the same nickname every time it is called with the same key, so that separate
// steps of one test can refer to the same player.
func (f *NicknameFactory) Get(key string) string {
	return f.byKey.Get(key)
}
