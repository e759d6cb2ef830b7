package domain

// Parameter is a single named value sent to the avatar application.
type Parameter struct {
	Name   string
	Value  float64
	Weight float64
}

// DesktopFrame is the output of the Transformation Engine for one tracking
// Frame. Only Parameters crosses the wire to the desktop link; the
// diagnostic maps exist for observers (UI, logging).
type DesktopFrame struct {
	FacePresent bool
	Parameters  []Parameter

	// Expressions maps rule name to its source expression text.
	Expressions map[string]string
	// Interpolations maps rule name to a human-readable interpolation label.
	Interpolations map[string]string
	// Extremums maps rule name to its observed output range.
	Extremums map[string]Extremum
}

// EmptyDesktopFrame returns the frame emitted when FacePresent is false.
func EmptyDesktopFrame() DesktopFrame {
	return DesktopFrame{FacePresent: false}
}
