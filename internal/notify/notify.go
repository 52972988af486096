package notify

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
)

const appName = "Remotescribe"

type Notifier interface {
	Notify(title, body string)
	Error(msg string)
}

type Desktop struct{}

func (Desktop) Notify(title, body string) {
	cmd := exec.Command("notify-send", "-a", appName, title, body)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send notification: %v", err)
	}
}

func (Desktop) Error(msg string) {
	cmd := exec.Command("notify-send", "-a", appName, "-u", "critical", appName+" Error", msg)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send error notification: %v", err)
	}
}

// Log writes notifications to the standard logger.
type Log struct{}

func (Log) Notify(title, body string) {
	log.Printf("Notification: %s - %s", title, body)
}

func (Log) Error(msg string) {
	log.Printf("Notification: %s Error - %s", appName, msg)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) Notify(title, body string) {}
func (Nop) Error(msg string)          {}

// New returns the notifier for a notifications.type value.
func New(kind string) Notifier {
	switch kind {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}

type MessageType int

const (
	MsgRecordingStarted MessageType = iota
	MsgRecordingSaved
	MsgRecordingEmpty
	MsgRecordingFailed
	MsgExported
	MsgTranscriptionUnavailable
	MsgConfigReloaded
)

type Message struct {
	Title   string
	Body    string
	IsError bool
}

// MessageDef ties a message to its config key and default text. Bodies may
// hold one %s verb filled by Send.
type MessageDef struct {
	Type         MessageType
	ConfigKey    string
	DefaultTitle string
	DefaultBody  string
	IsError      bool
}

var MessageDefs = []MessageDef{
	{MsgRecordingStarted, "recording_started", appName, "Recording started", false},
	{MsgRecordingSaved, "recording_saved", appName, "Recording saved to %s", false},
	{MsgRecordingEmpty, "recording_empty", appName, "Nothing was recorded", false},
	{MsgRecordingFailed, "recording_failed", appName, "Recording failed: %s", true},
	{MsgExported, "exported", appName, "Exported to %s", false},
	{MsgTranscriptionUnavailable, "transcription_unavailable", appName, "Recognition not available: %s", true},
	{MsgConfigReloaded, "config_reloaded", appName, "Configuration reloaded", false},
}

// Defaults returns every message with its default text.
func Defaults() map[MessageType]Message {
	out := make(map[MessageType]Message, len(MessageDefs))
	for _, def := range MessageDefs {
		out[def.Type] = Message{Title: def.DefaultTitle, Body: def.DefaultBody, IsError: def.IsError}
	}
	return out
}

// Send formats message mt from msgs with arg and delivers it through n.
func Send(n Notifier, msgs map[MessageType]Message, mt MessageType, arg ...string) {
	msg, ok := msgs[mt]
	if !ok {
		msg = Defaults()[mt]
	}
	body := msg.Body
	if len(arg) > 0 && strings.Contains(body, "%s") {
		body = fmt.Sprintf(body, arg[0])
	}
	if msg.IsError {
		n.Error(body)
		return
	}
	n.Notify(msg.Title, body)
}
