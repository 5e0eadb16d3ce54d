package dagstatus

// statusColor returns the ANSI color code for a given node or workflow
// status, with the reset code to follow it.
func statusColor(status string) (string, string) {
	var color string
	switch status {
	case "STATUS_DONE":
		color = "\033[32m" // Green
	case "STATUS_SUBMITTED":
		color = "\033[33m" // Yellow
	case "STATUS_ERROR":
		color = "\033[31m" // Red
	case "STATUS_READY", "STATUS_PRERUN", "STATUS_POSTRUN":
		color = "\033[36m" // Cyan
	case "STATUS_NOT_READY":
		color = "\033[35m" // Magenta
	default:
		color = ""
	}
	resetColor := "\033[0m"
	return color, resetColor
}
