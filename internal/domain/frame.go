package domain

// PanelFrame is one render instruction for a panel. Version grows with every
// update of the same panel inside a session; presenters drop frames whose
// version is not newer than the last one they accepted.
type PanelFrame struct {
	Session string        `json:"session" msgpack:"session"`
	Panel   string        `json:"panel" msgpack:"panel"`
	Title   string        `json:"title" msgpack:"title"`
	Rank    int           `json:"rank" msgpack:"rank"`
	Version uint64        `json:"version" msgpack:"version"`
	Failed  bool          `json:"failed,omitempty" msgpack:"failed,omitempty"`
	Items   []ContentItem `json:"items" msgpack:"items"`
}

// NewerThan reports whether f should replace other for the same panel.
func (f PanelFrame) NewerThan(other PanelFrame) bool {
	if f.Session != other.Session {
		return true
	}
	return f.Version > other.Version
}
