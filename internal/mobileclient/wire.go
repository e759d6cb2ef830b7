// Package mobileclient implements the Mobile Client: it keeps the phone's
// tracking source streaming with a periodic heartbeat, decodes inbound
// frames over UDP, and raises them as FrameReceived events.
package mobileclient

import "time"

// heartbeatRequest is the outbound "keep streaming" datagram. Unknown
// fields on the receiving side are ignored.
type heartbeatRequest struct {
	MessageType string `json:"messageType"`
	Time        float64 `json:"time"`
	SentBy      string  `json:"sentBy"`
	Ports       []int   `json:"ports"`
}

// newHeartbeatRequest builds the outbound datagram. sendForSeconds has no
// dedicated wire field (the upstream protocol infers stream duration from
// heartbeat cadence); it's accepted here for call-site documentation and
// kept available for a future protocol revision.
func newHeartbeatRequest(sentBy string, localPort int, sendForSeconds float64) heartbeatRequest {
	return heartbeatRequest{
		MessageType: "iOSTrackingDataRequest",
		Time:        float64(time.Now().UnixNano()) / 1e9,
		SentBy:      sentBy,
		Ports:       []int{localPort},
	}
}

// blendShapeEntry is a single {k,v} pair in the inbound frame's blend-shape
// array.
type blendShapeEntry struct {
	K string  `json:"k"`
	V float64 `json:"v"`
}

type vector3Wire struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type point2Wire struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// wireFrame is the inbound frame's JSON shape. Keys are case-sensitive;
// unknown fields are ignored by encoding/json's default decoding.
type wireFrame struct {
	FaceFound   bool              `json:"FaceFound"`
	Position    vector3Wire       `json:"Position"`
	Rotation    vector3Wire       `json:"Rotation"`
	EyeLeft     point2Wire        `json:"EyeLeft"`
	EyeRight    point2Wire        `json:"EyeRight"`
	BlendShapes []blendShapeEntry `json:"BlendShapes"`
}
