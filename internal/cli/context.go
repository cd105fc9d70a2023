// Package cli provides the command-line interface for the scrape application.
package cli

import (
	"github.com/expo-works/scrape/internal/app"
)

// Global application reference shared by the commands for one invocation.
var globalApp *app.Application

// SetApp stores the Application for commands to access.
func SetApp(a *app.Application) {
	globalApp = a
}

// GetApp retrieves the Application.
func GetApp() *app.Application {
	return globalApp
}
