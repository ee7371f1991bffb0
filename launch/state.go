package launch

import "windowtracker/status"

const tooltipMax = 120

// trayState is what the menu shows, derived from the status feed.
type trayState struct {
	canStart bool
	canStop  bool
	report   string
	tooltip  string
}

func newTrayState(trackingAvailable bool) trayState {
	return trayState{canStart: trackingAvailable, tooltip: "Window Tracker"}
}

func (s *trayState) apply(msg status.Message) {
	switch msg.Kind {
	case status.KindState:
		s.canStart, s.canStop = msg.CanStart, msg.CanStop
	case status.KindFailure:
		s.tooltip = shorten("Error: " + msg.Text)
		return
	}
	if path, ok := status.ParseReportPath(msg.Text); ok {
		s.report = path
	}
	if msg.Kind != status.KindState {
		s.tooltip = shorten(msg.Text)
	}
}

func shorten(text string) string {
	r := []rune(text)
	if len(r) <= tooltipMax {
		return text
	}
	return string(r[:tooltipMax-3]) + "..."
}
