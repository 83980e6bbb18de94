package mockapp

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxNicknameLength is the longest nickname the lobby accepts, in characters.
const MaxNicknameLength = 32

var (
	errEmptyNickname = errors.New("nickname must not be empty")
	errNicknameTaken = errors.New("nickname is already taken")
)

// Player is one entry in a lobby roster.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// lobby is the player roster of one browser session. Every change is passed to onChange with a
// copy of the new roster, while the lobby's lock is held, so that subscribers see changes in
// order.
type lobby struct {
	id       string
	players  []Player
	onChange func(lobbyID string, players []Player)
	lock     sync.Mutex

	// latest can be read without the lock, from the stream server's goroutine.
	latest atomic.Pointer[[]Player]
}

func newLobby(id string, onChange func(string, []Player)) *lobby {
	l := &lobby{id: id, onChange: onChange}
	l.latest.Store(&[]Player{})
	return l
}

func validateNickname(name string) error {
	if strings.TrimSpace(name) == "" {
		return errEmptyNickname
	}
	if n := utf8.RuneCountInString(name); n > MaxNicknameLength {
		return fmt.Errorf("nickname is %d characters long; the limit is %d", n, MaxNicknameLength)
	}
	return nil
}

// reserve checks that a player with this name could join right now.
func (l *lobby) reserve(name string) error {
	if err := validateNickname(name); err != nil {
		return err
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, p := range l.players {
		if p.Name == name {
			return errNicknameTaken
		}
	}
	return nil
}

// join adds a player. It checks again for a duplicate name, since another join of the same name
// may have completed while this one was delayed.
func (l *lobby) join(name string) (Player, error) {
	if err := validateNickname(name); err != nil {
		return Player{}, err
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, p := range l.players {
		if p.Name == name {
			return Player{}, errNicknameTaken
		}
	}
	p := Player{ID: uuid.NewString(), Name: name}
	l.players = append(l.players, p)
	l.changed()
	return p, nil
}

func (l *lobby) kick(playerID string) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i, p := range l.players {
		if p.ID == playerID {
			l.players = append(l.players[:i:i], l.players[i+1:]...)
			l.changed()
			return true
		}
	}
	return false
}

func (l *lobby) reset() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.players = nil
	l.changed()
}

func (l *lobby) roster() []Player {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.copyPlayers()
}

func (l *lobby) latestRoster() []Player {
	return *l.latest.Load()
}

func (l *lobby) changed() {
	players := l.copyPlayers()
	l.latest.Store(&players)
	if l.onChange != nil {
		l.onChange(l.id, players)
	}
}

func (l *lobby) copyPlayers() []Player {
	ret := make([]Player, len(l.players))
	copy(ret, l.players)
	return ret
}
