package publish

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

func TestPayloadWireFormat(t *testing.T) {
	p := types.PosturePayload{
		PostureText:  "Hunchback (120)",
		IsBad:        true,
		SitTime:      42,
		PressureData: [4]float64{0.25, 0.25, 0.25, 0.25},
	}

	got, err := UnmarshalPayload(MarshalPayload(p))
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalPayloadLayout(t *testing.T) {
	b := MarshalPayload(types.PosturePayload{PostureText: "No Person"})

	num, typ, n := protowire.ConsumeTag(b)
	require.Greater(t, n, 0)
	assert.Equal(t, protowire.Number(1), num)
	assert.Equal(t, protowire.BytesType, typ)
	b = b[n:]

	s, n := protowire.ConsumeString(b)
	require.Greater(t, n, 0)
	assert.Equal(t, "No Person", s)
	b = b[n:]

	// is_bad and sit_time are zero and omitted; pressure_data follows packed.
	num, typ, n = protowire.ConsumeTag(b)
	require.Greater(t, n, 0)
	assert.Equal(t, protowire.Number(4), num)
	assert.Equal(t, protowire.BytesType, typ)
	b = b[n:]

	packed, n := protowire.ConsumeBytes(b)
	require.Greater(t, n, 0)
	assert.Len(t, packed, 16)
	assert.Len(t, b[n:], 0)
}

func TestUnmarshalPayloadUnpackedAndUnknown(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 77)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, 15)
	for i := 0; i < 2; i++ {
		b = protowire.AppendTag(b, 4, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, 0x3e800000) // 0.25
	}

	p, err := UnmarshalPayload(b)
	require.NoError(t, err)
	assert.Equal(t, 15, p.SitTime)
	assert.Equal(t, [4]float64{0.25, 0.25, 0, 0}, p.PressureData)
}

func TestUnmarshalPayloadErrors(t *testing.T) {
	_, err := UnmarshalPayload([]byte{0x0a, 0x05, 'a'})
	assert.Error(t, err, "truncated string")

	var b []byte
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendVarint(b, 20)
	for i := 0; i < 5; i++ {
		b = protowire.AppendFixed32(b, 0)
	}
	_, err = UnmarshalPayload(b)
	assert.ErrorContains(t, err, "more than 4 channels")
}
