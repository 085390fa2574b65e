package posture

import "github.com/dj-oyu/smart-posture/posture-server/pkg/types"

// seatedPressure is the simulated seat-cushion reading while someone sits.
const seatedPressure = 0.25

// BuildPayload assembles the outbound snapshot from the final status and the
// session state. It has no side effects.
func BuildPayload(st Status, session SessionSnapshot) types.PosturePayload {
	p := types.PosturePayload{
		PostureText: st.Text,
		IsBad:       st.Bad,
		SitTime:     session.ElapsedSec,
	}
	if session.Present {
		for i := range p.PressureData {
			p.PressureData[i] = seatedPressure
		}
	}
	return p
}
