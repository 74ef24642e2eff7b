package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// spinner animates msg on uiOut while a long embedding step runs. It ends
// when stop is called or ctx is done, whichever comes first.
type spinner struct {
	msg  string
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// spin starts a spinner for msg.
func spin(ctx context.Context, msg string) *spinner {
	s := &spinner{msg: msg, quit: make(chan struct{}), done: make(chan struct{})}
	go s.run(ctx)
	return s
}

func (s *spinner) run(ctx context.Context) {
	defer close(s.done)
	tick := time.NewTicker(80 * time.Millisecond)
	defer tick.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-tick.C:
			frame := string(spinnerFrames[i%len(spinnerFrames)])
			fmt.Fprintf(uiOut, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.msg))
		}
	}
}

// stop ends the animation and clears its line. Repeated calls are no-ops.
func (s *spinner) stop() {
	s.once.Do(func() {
		close(s.quit)
		<-s.done
		fmt.Fprintf(uiOut, "\r%s\r", strings.Repeat(" ", len(s.msg)+4))
	})
}

// fail stops the spinner and reports msg as an error.
func (s *spinner) fail(msg string) {
	s.stop()
	printError("%s", msg)
}
