package backend

// Stage is a bring-up step. A backend that is not running is at StageNone.
type Stage int

const (
	StageNone Stage = iota
	StageConfigReset
	StageEngineInit
	StageCacheInit
	StageStatRegistered
	StageIoPoolStarted
	StagePublished
	StageRouteEnabled
	StageReady
)

var stageNames = [...]string{
	StageNone:           "none",
	StageConfigReset:    "config_reset",
	StageEngineInit:     "engine_init",
	StageCacheInit:      "cache_init",
	StageStatRegistered: "stat_registered",
	StageIoPoolStarted:  "io_pool_started",
	StagePublished:      "published",
	StageRouteEnabled:   "route_enabled",
	StageReady:          "ready",
}

// String returns the stage name used in logs and metrics.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
