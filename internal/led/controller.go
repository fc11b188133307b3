package led

// Patterns understood by Controller.Set. An empty pattern leaves the current
// trigger in place.
const (
	PatternSolid     = "solid"
	PatternBlink     = "blink"
	PatternHeartbeat = "heartbeat"
)

// Controller drives the board LEDs. LED names are the board-independent
// types from the board table ("system", "user", "blue").
type Controller interface {
	Set(ledType string, enabled bool, pattern string) error

	// Available lists the LED types present on this board, sorted.
	Available() []string

	// Patterns lists the patterns Set accepts. Empty when LEDs are absent.
	Patterns() []string
}
