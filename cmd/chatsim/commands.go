package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yaajosh/chat-simulator/core"
)

// controller is the part of the engine the terminal drives.
type controller interface {
	Pause()
	Resume()
	SetActivityLevel(level int) int
	SetLocale(code string) core.Locale
	SetAutoResponse(on bool)
	OnUtterance(text string)
	OnUserUtterance(text string)
}

var errQuit = errors.New("quit")

const helpText = `commands:
  /pause            stop spontaneous messages
  /resume           resume spontaneous messages
  /activity N       set activity 1-10
  /locale CODE      switch roster and prompt language
  /auto on|off      toggle replies to your speech
  /say TEXT         post TEXT to chat as the streamer
  /quit             exit
anything else is treated as something you said on stream`

// handleLine applies one line of terminal input. It returns a status line to
// print (possibly empty) or errQuit.
func handleLine(ctl controller, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	if !strings.HasPrefix(line, "/") {
		ctl.OnUtterance(line)
		return "", nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "pause":
		ctl.Pause()
		return "paused", nil
	case "resume":
		ctl.Resume()
		return "resumed", nil
	case "activity":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return "", fmt.Errorf("activity needs a number, got %q", arg)
		}
		return fmt.Sprintf("activity %d", ctl.SetActivityLevel(n)), nil
	case "locale":
		if arg == "" {
			return "", errors.New("locale needs a code such as de or en")
		}
		return fmt.Sprintf("locale %s", ctl.SetLocale(arg)), nil
	case "auto":
		switch strings.ToLower(arg) {
		case "on":
			ctl.SetAutoResponse(true)
		case "off":
			ctl.SetAutoResponse(false)
		default:
			return "", fmt.Errorf("auto needs on or off, got %q", arg)
		}
		return "auto response " + strings.ToLower(arg), nil
	case "say":
		if arg == "" {
			return "", errors.New("say needs text")
		}
		ctl.OnUserUtterance(arg)
		return "", nil
	case "help", "?":
		return helpText, nil
	case "quit", "exit":
		return "", errQuit
	default:
		return "", fmt.Errorf("unknown command /%s, try /help", name)
	}
}
