package features

import "fmt"

// #region allow-reason
// AllowReason records why an app was allowed to run again.
type AllowReason int

const (
	AllowUnknown AllowReason = 0
	UserTapIcon  AllowReason = 1
	UserRecents  AllowReason = 2
	UserDeeplink AllowReason = 3
	PolicyAllow  AllowReason = 4
)

func (r AllowReason) String() string {
	switch r {
	case UserTapIcon:
		return "user_tap_icon"
	case UserRecents:
		return "user_recents"
	case UserDeeplink:
		return "user_deeplink"
	case PolicyAllow:
		return "policy_allow"
	default:
		return "unknown"
	}
}

// #endregion allow-reason

// #region context
// Context is the snapshot taken when an app is allowed to run. It is captured
// once per decision and reused for all training derived from that decision.
// Keep fields low-cardinality.
type Context struct {
	TimeBucket     int         `json:"time_bucket"`     // 0..3, e.g. morning/afternoon/evening/night
	AllowReason    AllowReason `json:"allow_reason"`    // UserTapIcon, UserRecents, ...
	PrevForeground string      `json:"prev_foreground"` // "" when unknown
	BatteryBucket  int         `json:"battery_bucket"`  // 0..3
	MaxPowerMode   bool        `json:"max_power_mode"`
}

func (c Context) String() string {
	return fmt.Sprintf("Context{timeBucket=%d, allowReason=%s, prev=%q, batteryBucket=%d, maxPower=%v}",
		c.TimeBucket, c.AllowReason, c.PrevForeground, c.BatteryBucket, c.MaxPowerMode)
}

// #endregion context
