package types

// PressureChannels is the length of the pressure_data vector.
const PressureChannels = 4

// PosturePayload is the state snapshot pushed to display clients every frame.
// Field names match the socket.io "server_update" event of the display app.
type PosturePayload struct {
	PostureText  string                    `json:"posture_text"`
	IsBad        bool                      `json:"is_bad"`
	SitTime      int                       `json:"sit_time"`
	PressureData [PressureChannels]float64 `json:"pressure_data"`
}
