package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
	"github.com/drblury/socketbus/internal/runtime/hashing"
)

func TestPostProtoRoundTrip(t *testing.T) {
	r := NewRegistry()
	h, err := r.NewSocket("proto")
	require.NoError(t, err)

	require.NoError(t, PostProto(r, URL{Socket: h, Path: 3}, wrapperspb.String("hello")))

	_, err = r.Dispatch(h, func(m *Message) {
		assert.Equal(t, hashing.String64("google.protobuf.StringValue"), m.ID)
		assert.Equal(t, "google.protobuf.StringValue", m.Descriptor.DescriptorName())
		assert.Equal(t, uint64(3), m.Receiver.Path)

		var out wrapperspb.StringValue
		require.NoError(t, UnmarshalProto(m, &out))
		assert.Equal(t, "hello", out.GetValue())

		err := UnmarshalProto(m, &structpb.Struct{})
		require.ErrorIs(t, err, errspkg.ErrDescriptorMismatch)
	})
	require.NoError(t, err)
}

func TestUnmarshalProtoWithoutDescriptor(t *testing.T) {
	err := UnmarshalProto(&Message{Payload: []byte{1}}, &wrapperspb.StringValue{})
	require.ErrorIs(t, err, errspkg.ErrDescriptorMismatch)
}

func TestDispatchProtoSplitsByType(t *testing.T) {
	r := NewRegistry()
	h, err := r.NewSocket("typed")
	require.NoError(t, err)

	require.NoError(t, PostProto(r, URL{Socket: h}, wrapperspb.Int64(7)))
	require.NoError(t, PostProto(r, URL{Socket: h}, wrapperspb.String("skip")))
	require.NoError(t, r.Post(h, 1, []byte("raw")))
	require.NoError(t, PostProto(r, URL{Socket: h}, wrapperspb.Int64(8)))

	var values []int64
	var others int
	n, err := DispatchProto(r, h, func(_ *Message, v *wrapperspb.Int64Value) {
		values = append(values, v.GetValue())
	}, func(*Message) { others++ })
	require.NoError(t, err)
	assert.Equal(t, uint32(4), n)
	assert.Equal(t, []int64{7, 8}, values)
	assert.Equal(t, 2, others)
}

func TestDispatchProtoReportsDecodeFailure(t *testing.T) {
	r := NewRegistry()
	h, err := r.NewSocket("broken")
	require.NoError(t, err)

	d := ProtoDescriptorOf(&wrapperspb.Int64Value{})
	require.NoError(t, r.Post(h, 1, []byte{0xff, 0xff, 0xff}, WithDescriptor(d)))

	_, err = DispatchProto(r, h, func(*Message, *wrapperspb.Int64Value) {
		t.Fatal("broken payload must not decode")
	}, nil)
	require.Error(t, err)
}

func TestNewProtoMessage(t *testing.T) {
	msg, err := NewProtoMessage[*structpb.Struct]()
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.True(t, proto.Equal(&structpb.Struct{}, msg))
}

func TestProtoDescriptorExposesMessageDescriptor(t *testing.T) {
	d := ProtoDescriptorOf(&structpb.Struct{})
	assert.Equal(t, "Struct", string(d.MessageDescriptor().Name()))
}
