package handler

import (
	"fmt"
	"io"
	"strconv"

	"github.com/supermancell/chatprobe/internal/common"
)

// NewConsoleHandler prints raw frames, errors and the closure event to w.
// Frames and the close reason are written verbatim, one per line.
func NewConsoleHandler(w io.Writer) common.EventHandler {
	return func(evt common.Event) {
		switch evt.Kind {
		case common.EventMessage:
			fmt.Fprintf(w, "%s\n", evt.Data)
		case common.EventError:
			fmt.Fprintf(w, "error: %v\n", evt.Err)
		case common.EventClosed:
			line := "### closed ### " + strconv.Itoa(evt.Code)
			if evt.Reason != "" {
				line += " " + evt.Reason
			}
			fmt.Fprintln(w, line)
		}
	}
}
