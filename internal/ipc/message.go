// Package ipc implements the cross-process control link: a stream of
// length-prefixed framed messages over a local socket, carrying a
// tagged-enum Message between the external controller and the core.
package ipc

import "github.com/autorun-labs/autorun/internal/realm"

// Tag is the Message wire discriminant, assigned in declaration order.
type Tag byte

const (
	TagPing Tag = iota
	TagPong
	TagPrint
	TagRunCode
	TagSetWorkspacePath
	TagShutdown
)

// Message is the tagged-enum cross-process message. Exactly one of the
// payload fields is meaningful, selected by Tag.
type Message struct {
	Tag Tag

	Text   string      // Print
	Realm  realm.Realm // RunCode
	Source string      // RunCode
	Path   string      // SetWorkspacePath
}

// Ping/Pong/Shutdown carry no payload.
func Ping() Message     { return Message{Tag: TagPing} }
func Pong() Message     { return Message{Tag: TagPong} }
func Shutdown() Message { return Message{Tag: TagShutdown} }

// Print carries a line of text for the core's host logger.
func Print(text string) Message { return Message{Tag: TagPrint, Text: text} }

// RunCode carries a realm and a chunk of Lua source to enqueue onto the
// main-thread queue.
func RunCode(re realm.Realm, source string) Message {
	return Message{Tag: TagRunCode, Realm: re, Source: source}
}

// SetWorkspacePath tells the core which workspace directory to use.
func SetWorkspacePath(path string) Message {
	return Message{Tag: TagSetWorkspacePath, Path: path}
}
