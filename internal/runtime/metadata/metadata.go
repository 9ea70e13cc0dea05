// Package metadata maps bus message addressing onto transport headers.
package metadata

import (
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Header keys written by the bridge.
const (
	KeyMessageID        = "socketbus_message_id"
	KeyDescriptor       = "socketbus_descriptor"
	KeySenderSocket     = "socketbus_sender_socket"
	KeySenderPath       = "socketbus_sender_path"
	KeySenderFragment   = "socketbus_sender_fragment"
	KeyReceiverSocket   = "socketbus_receiver_socket"
	KeyReceiverPath     = "socketbus_receiver_path"
	KeyReceiverFragment = "socketbus_receiver_fragment"
	KeyOrigin           = "socketbus_origin"
)

// Envelope is the transport-level view of a bus message header. Sockets are
// carried by name since handles are only meaningful inside one process.
type Envelope struct {
	MessageID        uint64
	Descriptor       string
	SenderSocket     string
	SenderPath       uint64
	SenderFragment   uint64
	ReceiverSocket   string
	ReceiverPath     uint64
	ReceiverFragment uint64
	// Origin identifies the process that published the message, so a bridge
	// can skip its own echoes.
	Origin string
}

// ToWatermill encodes e. Zero hashes and empty strings are omitted.
func (e Envelope) ToWatermill() message.Metadata {
	md := message.Metadata{
		KeyMessageID: strconv.FormatUint(e.MessageID, 10),
	}
	setString(md, KeyDescriptor, e.Descriptor)
	setString(md, KeySenderSocket, e.SenderSocket)
	setString(md, KeyReceiverSocket, e.ReceiverSocket)
	setString(md, KeyOrigin, e.Origin)
	setHash(md, KeySenderPath, e.SenderPath)
	setHash(md, KeySenderFragment, e.SenderFragment)
	setHash(md, KeyReceiverPath, e.ReceiverPath)
	setHash(md, KeyReceiverFragment, e.ReceiverFragment)
	return md
}

// FromWatermill decodes the headers written by ToWatermill. A missing
// message id is an error; missing optional keys decode to zero.
func FromWatermill(md message.Metadata) (Envelope, error) {
	raw, ok := md[KeyMessageID]
	if !ok {
		return Envelope{}, fmt.Errorf("metadata: missing %s", KeyMessageID)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Envelope{}, fmt.Errorf("metadata: %s: %w", KeyMessageID, err)
	}
	e := Envelope{
		MessageID:      id,
		Descriptor:     md[KeyDescriptor],
		SenderSocket:   md[KeySenderSocket],
		ReceiverSocket: md[KeyReceiverSocket],
		Origin:         md[KeyOrigin],
	}
	for key, dst := range map[string]*uint64{
		KeySenderPath:       &e.SenderPath,
		KeySenderFragment:   &e.SenderFragment,
		KeyReceiverPath:     &e.ReceiverPath,
		KeyReceiverFragment: &e.ReceiverFragment,
	} {
		if *dst, err = parseHash(md, key); err != nil {
			return Envelope{}, err
		}
	}
	return e, nil
}

func setString(md message.Metadata, key, value string) {
	if value != "" {
		md[key] = value
	}
}

func setHash(md message.Metadata, key string, value uint64) {
	if value != 0 {
		md[key] = strconv.FormatUint(value, 16)
	}
}

func parseHash(md message.Metadata, key string) (uint64, error) {
	raw, ok := md[key]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata: %s: %w", key, err)
	}
	return v, nil
}
