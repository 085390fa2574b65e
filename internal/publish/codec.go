package publish

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// Field numbers of the PosturePayload message (api/posture.proto).
const (
	fieldPostureText  protowire.Number = 1
	fieldIsBad        protowire.Number = 2
	fieldSitTime      protowire.Number = 3
	fieldPressureData protowire.Number = 4
)

// MarshalPayload encodes p in protobuf wire format. Scalar fields at their
// zero value are omitted; pressure_data is always written, packed.
func MarshalPayload(p types.PosturePayload) []byte {
	b := make([]byte, 0, 32+len(p.PostureText))

	if p.PostureText != "" {
		b = protowire.AppendTag(b, fieldPostureText, protowire.BytesType)
		b = protowire.AppendString(b, p.PostureText)
	}
	if p.IsBad {
		b = protowire.AppendTag(b, fieldIsBad, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if p.SitTime != 0 {
		b = protowire.AppendTag(b, fieldSitTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(p.SitTime)))
	}

	b = protowire.AppendTag(b, fieldPressureData, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(p.PressureData)))
	for _, v := range p.PressureData {
		b = protowire.AppendFixed32(b, math.Float32bits(float32(v)))
	}
	return b
}

// UnmarshalPayload decodes a PosturePayload message. Unknown fields are skipped.
func UnmarshalPayload(b []byte) (types.PosturePayload, error) {
	var p types.PosturePayload
	pressure := 0

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, fmt.Errorf("decode payload tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldPostureText && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return p, fmt.Errorf("decode posture_text: %w", protowire.ParseError(n))
			}
			p.PostureText = v
			b = b[n:]

		case num == fieldIsBad && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, fmt.Errorf("decode is_bad: %w", protowire.ParseError(n))
			}
			p.IsBad = protowire.DecodeBool(v)
			b = b[n:]

		case num == fieldSitTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, fmt.Errorf("decode sit_time: %w", protowire.ParseError(n))
			}
			p.SitTime = int(int32(v))
			b = b[n:]

		case num == fieldPressureData && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return p, fmt.Errorf("decode pressure_data: %w", protowire.ParseError(n))
			}
			b = b[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return p, fmt.Errorf("decode pressure_data: %w", protowire.ParseError(m))
				}
				if err := setPressure(&p, &pressure, v); err != nil {
					return p, err
				}
				packed = packed[m:]
			}

		case num == fieldPressureData && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return p, fmt.Errorf("decode pressure_data: %w", protowire.ParseError(n))
			}
			if err := setPressure(&p, &pressure, v); err != nil {
				return p, err
			}
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return p, nil
}

func setPressure(p *types.PosturePayload, idx *int, bits uint32) error {
	if *idx >= len(p.PressureData) {
		return fmt.Errorf("decode pressure_data: more than %d channels", len(p.PressureData))
	}
	p.PressureData[*idx] = float64(math.Float32frombits(bits))
	*idx++
	return nil
}
