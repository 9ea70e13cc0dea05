package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	in := Envelope{
		MessageID:        1<<63 + 5,
		Descriptor:       "system.Exit",
		SenderSocket:     "main",
		SenderPath:       0xdeadbeef,
		SenderFragment:   1,
		ReceiverSocket:   "@system",
		ReceiverPath:     ^uint64(0),
		ReceiverFragment: 2,
		Origin:           "01J0000000000000000000000",
	}

	out, err := FromWatermill(in.ToWatermill())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestZeroFieldsAreOmitted(t *testing.T) {
	md := Envelope{MessageID: 7}.ToWatermill()
	if len(md) != 1 {
		t.Fatalf("expected only the message id, got %v", md)
	}
	if md[KeyMessageID] != "7" {
		t.Fatalf("unexpected id header %q", md[KeyMessageID])
	}
}

func TestFromWatermillErrors(t *testing.T) {
	tests := []struct {
		name string
		md   message.Metadata
	}{
		{"missing id", message.Metadata{}},
		{"bad id", message.Metadata{KeyMessageID: "x"}},
		{"bad hash", message.Metadata{KeyMessageID: "1", KeySenderPath: "zz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromWatermill(tt.md); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestForeignHeadersAreIgnored(t *testing.T) {
	e, err := FromWatermill(message.Metadata{KeyMessageID: "3", "traceparent": "00-abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.MessageID != 3 || e.Descriptor != "" {
		t.Fatalf("unexpected envelope %+v", e)
	}
}
