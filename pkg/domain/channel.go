package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ChannelKind tags the producer of an output channel.
type ChannelKind string

const (
	ChannelMachine ChannelKind = "machine"
	ChannelProcess ChannelKind = "process"
)

const statusChannelPrefix = "machine:status:"

// NewOutputChannel returns a fresh channel name of the form "<kind>:output:<token>".
// Tokens are random UUIDs and are never reused within a process.
func NewOutputChannel(kind ChannelKind) string {
	return string(kind) + ":output:" + uuid.NewString()
}

// StatusChannel returns the channel on which lifecycle events for id are published.
func StatusChannel(id MachineID) string {
	return statusChannelPrefix + string(id)
}

// ChannelKindOf extracts the kind tag from an output channel name.
func ChannelKindOf(channel string) (ChannelKind, bool) {
	kind, rest, ok := strings.Cut(channel, ":")
	if !ok || !strings.HasPrefix(rest, "output:") {
		return "", false
	}
	switch ChannelKind(kind) {
	case ChannelMachine, ChannelProcess:
		return ChannelKind(kind), true
	}
	return "", false
}
