package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redstonecraft/redstone/internal/constants"
	"github.com/redstonecraft/redstone/internal/protocol"
	"github.com/redstonecraft/redstone/internal/scheduler"
)

// command is one chat command: its keyword, the rank required to run it,
// a help line, and the handler. The handler's string results go back to
// the caller only; a returned error becomes the generic failure reply.
type command struct {
	keyword string
	rank    constants.Rank
	doc     string
	run     func(c *Client, args []string) ([]string, error)
}

// commandTable holds every command in help-page order.
var commandTable []command

func init() {
	commandTable = []command{
		{"mute", constants.RankAdministrator, "Mutes a specific player for an amount of time.", runMute},
		{"kick", constants.RankAdministrator, "Kicks a player for a certain reason.", runKick},
		{"say", constants.RankAdministrator, "Broadcasts a server message.", runSay},
		{"goto", constants.RankGuest, "Sends a player to a specific world.", runGoto},
		{"saveall", constants.RankAdministrator, "Saves all worlds.", runSaveAll},
		{"save", constants.RankAdministrator, "Saves the world your currently in.", runSave},
		{"tp", constants.RankGuest, "Teleports a specific player to another player.", runTeleport},
		{"list", constants.RankGuest, "Lists players, worlds currently active.", runList},
		{"help", constants.RankGuest, "Shows the help page.", runHelp},
	}
}

// commandParser routes /-prefixed chat lines for one connection.
type commandParser struct {
	client   *Client
	commands map[string]command
}

func newCommandParser(c *Client) *commandParser {
	commands := make(map[string]command, len(commandTable))
	for _, cmd := range commandTable {
		commands[cmd.keyword] = cmd
	}
	return &commandParser{client: c, commands: commands}
}

// parse tokenizes a command line, gates it on rank, and runs it. The
// returned lines are replies for the caller; nil means no reply.
func (p *commandParser) parse(message string) []string {
	tokens := strings.Split(strings.TrimPrefix(message, "/"), " ")
	keyword := tokens[0]
	args := tokens[1:]

	c := p.client
	e := c.Entity()
	if e == nil {
		return nil
	}

	slog.Info("player issued server command", "player", e.Username, "command", keyword)

	cmd, ok := p.commands[keyword]
	if !ok {
		return []string{fmt.Sprintf("Couldn't execute unknown command %s!", keyword)}
	}

	if !constants.HasPermission(e.Rank, cmd.rank) {
		return []string{"You don't have access to that command!"}
	}

	out, err := cmd.run(c, args)
	if err != nil {
		slog.Warn("command failed", "player", e.Username, "command", keyword, "error", err)
		return []string{fmt.Sprintf("Failed to execute command %s!", keyword)}
	}
	return out
}

// runMute toggles a player's mute. With a timeout in seconds, the mute is
// lifted automatically, but only if this invocation's mute is still in
// effect; a later manual change wins over the timer.
func runMute(c *Client, args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, errors.New("mute requires a target player")
	}
	target := args[0]

	e := c.srv.worlds.EntityFromUsername(target)
	if e == nil {
		return []string{fmt.Sprintf("Failed to mute/unmute unknown player %s!", target)}, nil
	}
	if !e.IsPlayer() {
		return []string{fmt.Sprintf("Failed to mute non player %s!", target)}, nil
	}

	e.Muted = !e.Muted
	e.MuteGen++

	if len(args) >= 2 && e.Muted {
		seconds, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return []string{fmt.Sprintf("Failed to mute player %s for %s!", target, args[1])}, nil
		}

		srv := c.srv
		gen := e.MuteGen
		name := fmt.Sprintf("unmute-%s-%d", target, gen)
		delay := time.Duration(seconds * float64(time.Second))

		if _, err := srv.sched.Add(name, 0, delay, func(*scheduler.Task) scheduler.Result {
			srv.mu.Lock()
			defer srv.mu.Unlock()
			if t := srv.worlds.EntityFromUsername(target); t != nil && t.Muted && t.MuteGen == gen {
				t.Muted = false
				t.MuteGen++
			}
			return scheduler.Done
		}); err != nil {
			return nil, err
		}
	}

	return []string{fmt.Sprintf("Successfully muted %s.", target)}, nil
}

func runKick(c *Client, args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, errors.New("kick requires a target player")
	}
	target := args[0]

	e := c.srv.worlds.EntityFromUsername(target)
	if e == nil {
		return []string{fmt.Sprintf("Failed to kick unknown player %s", target)}, nil
	}

	tc := c.srv.clients.ByEntity(e)
	if tc == nil {
		return []string{fmt.Sprintf("Failed to kick player %s!", target)}, nil
	}

	tc.Dispatch(protocol.Upstream, protocol.IDDisconnectPlayer, strings.Join(args[1:], " "))
	return []string{fmt.Sprintf("Successfully kicked player %s!", e.Username)}, nil
}

func runSay(c *Client, args []string) ([]string, error) {
	e := c.Entity()
	if e == nil {
		return nil, errors.New("say without a player entity")
	}

	message := constants.ColorRed + "[SERVER]" + constants.ColorWhite + ": " + strings.Join(args, " ")
	c.srv.clients.Broadcast(protocol.Upstream, protocol.IDMessage, nil, e.ID, message)
	return nil, nil
}

// runGoto moves the caller to another world by replaying the handshake's
// join path against it, which restreams the level.
func runGoto(c *Client, args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, errors.New("goto requires a world name")
	}
	name := args[0]

	e := c.Entity()
	if e == nil {
		return []string{fmt.Sprintf("Failed to teleport to world %s!", name)}, nil
	}

	target := c.srv.worlds.World(name)
	if target == nil {
		return []string{fmt.Sprintf("Failed to teleport to world, %s doesn't exist!", name)}, nil
	}

	current := c.srv.worlds.World(e.World)
	if current == nil {
		return []string{fmt.Sprintf("Failed to teleport to world %s!", name)}, nil
	}

	if current.Name() == target.Name() {
		return []string{"You cannot teleport to a world you're already in!"}, nil
	}

	username := e.Username
	c.Dispatch(protocol.Upstream, protocol.IDIdentification, username, e, target.Name())

	return []string{fmt.Sprintf("Successfully teleported %s to world %s", username, target.Name())}, nil
}

func runSaveAll(c *Client, args []string) ([]string, error) {
	for _, w := range c.srv.worlds.Worlds() {
		if err := w.Save(); err != nil {
			return nil, err
		}
	}
	return []string{"Successfully saved all worlds."}, nil
}

func runSave(c *Client, args []string) ([]string, error) {
	e := c.Entity()
	if e == nil {
		return []string{"Failed to save world!"}, nil
	}
	w := c.srv.worlds.World(e.World)
	if w == nil {
		return []string{"Failed to save world!"}, nil
	}
	if err := w.Save(); err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("Successfully saved world %s.", w.Name())}, nil
}

// runTeleport moves the caller onto another player and announces the new
// absolute position to everyone.
func runTeleport(c *Client, args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, errors.New("tp requires a target player")
	}
	target := args[0]

	sender := c.Entity()
	if sender == nil {
		return []string{fmt.Sprintf("Failed to find player %s", target)}, nil
	}

	te := c.srv.worlds.EntityFromUsername(target)
	if te == nil {
		return []string{fmt.Sprintf("Failed to find target player %s", target)}, nil
	}

	if sender == te {
		return []string{"You cannot teleport to your self!"}, nil
	}

	sender.X, sender.Y, sender.Z = te.X, te.Y, te.Z

	c.srv.clients.Broadcast(protocol.Upstream, protocol.IDPositionOrientation, nil,
		sender.ID, sender.X, sender.Y, sender.Z, sender.Yaw, sender.Pitch)

	return []string{fmt.Sprintf("Successfully teleported %s to %s.", sender.Username, te.Username)}, nil
}

func runList(c *Client, args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, errors.New("list requires an argument")
	}

	switch args[0] {
	case "players":
		return []string{fmt.Sprintf("There are currently %d players online.", c.srv.worlds.NumPlayers())}, nil
	case "worlds":
		var sb strings.Builder
		for _, w := range c.srv.worlds.Worlds() {
			sb.WriteString(w.Name())
			sb.WriteString(",")
		}
		return []string{sb.String()}, nil
	default:
		return []string{fmt.Sprintf("Unknown command argument specified %s!", args[0])}, nil
	}
}

func runHelp(c *Client, args []string) ([]string, error) {
	out := make([]string, 0, len(commandTable))
	for _, cmd := range commandTable {
		out = append(out, fmt.Sprintf("> /%s: %s", cmd.keyword, cmd.doc))
	}
	return out, nil
}
