package constants

// Classic chat color codes. A color code embedded in a message string
// switches the rendering color of the following characters.
const (
	ColorBlack       = "&0"
	ColorDarkBlue    = "&1"
	ColorDarkGreen   = "&2"
	ColorDarkTeal    = "&3"
	ColorDarkRed     = "&4"
	ColorPurple      = "&5"
	ColorGold        = "&6"
	ColorGray        = "&7"
	ColorDarkGray    = "&8"
	ColorBlue        = "&9"
	ColorBrightGreen = "&a"
	ColorTeal        = "&b"
	ColorRed         = "&c"
	ColorPink        = "&d"
	ColorYellow      = "&e"
	ColorWhite       = "&f"
)
