package ui

import (
	"errors"
	"os"
	"slices"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrNoChats is returned by PickChat when nothing has been imported.
var ErrNoChats = errors.New("no imported chats")

// isTerminal checks if stdin is connected to a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeCharm())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// PickChat asks which imported chat to open, preselecting last. A single
// chat is returned without asking.
func PickChat(chats []string, last string) (string, error) {
	switch len(chats) {
	case 0:
		return "", ErrNoChats
	case 1:
		return chats[0], nil
	}

	choice := chats[0]
	if slices.Contains(chats, last) {
		choice = last
	}
	opts := make([]huh.Option[string], len(chats))
	for i, name := range chats {
		opts[i] = huh.NewOption(name, name)
	}

	form := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Open which chat?").
				Description("Recall rounds and the graph are built from this chat").
				Options(opts...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return choice, nil
}
