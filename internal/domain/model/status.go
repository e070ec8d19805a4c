package model

// StatusView is the presentable record derived from a ConnectionState.
type StatusView struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Tag   string `json:"status"`
}

// Project maps a raw connection state to its presentation record.
func Project(state ConnectionState) StatusView {
	switch state {
	case Connecting:
		return StatusView{Label: "Connecting...", Color: "orange", Tag: "connecting"}
	case Open:
		return StatusView{Label: "Connected", Color: "green", Tag: "connected"}
	case Closing:
		return StatusView{Label: "Closing...", Color: "orange", Tag: "closing"}
	case Closed:
		return StatusView{Label: "Disconnected", Color: "red", Tag: "disconnected"}
	default:
		return StatusView{Label: "Unknown", Color: "gray", Tag: "unknown"}
	}
}
