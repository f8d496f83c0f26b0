package tui

import (
	"context"
	"errors"
	"iter"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Format renders one value as a display line.
type Format func(v any) string

// RunWatch shows values from seq until the stream ends and the user quits.
// cancel is called when the program exits so the stream releases its
// producer; seq must observe the context cancel belongs to.
func RunWatch(cancel context.CancelFunc, cfg WatchConfig, seq iter.Seq2[any, error], format Format, opts ...tea.ProgramOption) (WatchModel, error) {
	p := tea.NewProgram(NewWatchModel(cfg), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	var wg sync.WaitGroup
	wg.Go(func() {
		Feed(seq, format, p.Send)
	})

	final, err := p.Run()
	cancel()
	wg.Wait()

	m, _ := final.(WatchModel)
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return m, err
	}
	return m, nil
}

// Feed ranges over seq and sends a ValueMsg per value followed by a single
// DoneMsg.
func Feed(seq iter.Seq2[any, error], format Format, send func(tea.Msg)) {
	for v, err := range seq {
		if err != nil {
			send(DoneMsg{Err: err})
			return
		}
		send(ValueMsg{Text: format(v)})
	}
	send(DoneMsg{})
}
