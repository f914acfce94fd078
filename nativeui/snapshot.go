package nativeui

// Snapshot is a point in time view of a Component for the admin API.
type Snapshot struct {
	Name                  string  `json:"name"`
	State                 string  `json:"state"`
	AdUnitID              string  `json:"ad_unit_id"`
	ReloadIntervalSeconds float64 `json:"reload_interval_seconds"`
	Generation            uint64  `json:"generation"`
	Requests              int     `json:"requests"`
	PendingRequest        bool    `json:"pending_request"`
	ResponseID            string  `json:"response_id,omitempty"`
	Placeholder           string  `json:"placeholder,omitempty"`
	AdVisible             bool    `json:"ad_visible"`
	PlaceholderVisible    bool    `json:"placeholder_visible"`
	ReloadScheduled       bool    `json:"reload_scheduled"`
}

func (c *Component) Snapshot() Snapshot {
	s := Snapshot{
		Name:                  c.cfg.Name,
		State:                 c.state.String(),
		AdUnitID:              c.cfg.AdUnitID,
		ReloadIntervalSeconds: c.cfg.ReloadInterval.Seconds(),
		Generation:            c.generation,
		Requests:              c.requests,
		PendingRequest:        c.pending,
		Placeholder:           c.placeholder,
		ReloadScheduled:       c.state == StateActive && c.timer.Active(),
	}
	if c.currentAd != nil {
		s.ResponseID = c.currentAd.ResponseInfo().ResponseID
	}
	if c.widgets.AdView != nil {
		s.AdVisible = c.widgets.AdView.Active()
	}
	if c.widgets.PlaceholderView != nil {
		s.PlaceholderVisible = c.widgets.PlaceholderView.Active()
	}
	return s
}
