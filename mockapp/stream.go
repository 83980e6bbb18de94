package mockapp

import (
	"encoding/json"
	"fmt"

	"github.com/acronymia/ui-test-harness/framework"

	"github.com/launchdarkly/eventsource"
)

// PlayersEvent is the name of the stream event that carries the whole roster.
const PlayersEvent = "players"

type eventSourceDebugLogger struct {
	logger framework.Logger
}

func (l eventSourceDebugLogger) Println(args ...interface{}) {
	l.logger.Printf("%s", fmt.Sprintln(args...))
}

func (l eventSourceDebugLogger) Printf(format string, args ...interface{}) {
	l.logger.Printf(format, args...)
}

type rosterEvent struct {
	players []Player
}

func (e rosterEvent) Event() string { return PlayersEvent }
func (e rosterEvent) Id() string    { return "" } //nolint:stylecheck
func (e rosterEvent) Data() string {
	players := e.players
	if players == nil {
		players = []Player{}
	}
	data, _ := json.Marshal(players)
	return string(data)
}

// rosterReplay gives each new stream connection the current roster of its lobby, so that a page
// that connects after a join still shows the player.
type rosterReplay struct {
	lobby *lobby
}

func (r rosterReplay) Replay(channel, id string) chan eventsource.Event {
	eventsCh := make(chan eventsource.Event, 1)
	eventsCh <- rosterEvent{players: r.lobby.latestRoster()}
	close(eventsCh)
	return eventsCh
}

func newStreamServer(logger framework.Logger) *eventsource.Server {
	streams := eventsource.NewServer()
	streams.ReplayAll = true
	streams.Logger = eventSourceDebugLogger{logger}
	return streams
}

func streamChannel(lobbyID string) string {
	return "lobby/" + lobbyID
}
