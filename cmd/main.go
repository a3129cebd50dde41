// Package main is the production entry point for GoVis.
//
// GoVis turns a soundtrack, an emblem and a background into an audio-reactive
// visual, previewed live in a window and exported to video:
// - Event-driven communication (no callbacks)
// - Dependency injection for testability
// - MVP pattern for UI decoupling
//
// Build:
//
//	go build -o build/govis ./cmd
//
// Run:
//
//	./build/govis                 # preview window
//	./build/govis export --audio song.mp3 --output song.mp4
package main

func main() {
	Execute()
}
