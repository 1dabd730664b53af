package lib

import "github.com/maximhq/pushbq/interfaces"

var logger interfaces.Logger

// SetLogger sets the logger for the application.
func SetLogger(l interfaces.Logger) {
	logger = l
}
