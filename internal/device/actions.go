package device

// Android key event codes used by the action table.
const (
	KeyHome       = 3
	KeyVolumeUp   = 24
	KeyVolumeDown = 25
	KeyPower      = 26
	KeyPlayPause  = 85
	KeyNext       = 87
	KeyPrevious   = 88
	KeyPlay       = 126
	KeyPause      = 127
)

// powerCondition gates an action on the classified state before any key
// is sent. Fire TV has a single POWER toggle, so turn_on/turn_off must
// check the current state or they would invert it.
type powerCondition int

const (
	always       powerCondition = iota
	onlyWhenOff                 // send only when the device is off
	onlyWhenOn                  // send only when the device is not off
)

// action maps an action ID to the key events it sends.
type action struct {
	keys      []int
	condition powerCondition
}

// actionTable is the closed set of remote-control actions. Unknown IDs
// fail with ErrUnknownAction; there is no passthrough for raw key codes.
var actionTable = map[string]action{
	"turn_on":          {keys: []int{KeyPower, KeyHome}, condition: onlyWhenOff},
	"turn_off":         {keys: []int{KeyPower}, condition: onlyWhenOn},
	"home":             {keys: []int{KeyHome}},
	"media_play_pause": {keys: []int{KeyPlayPause}},
	"media_play":       {keys: []int{KeyPlay}},
	"media_pause":      {keys: []int{KeyPause}},
	"media_next":       {keys: []int{KeyNext}},
	"media_previous":   {keys: []int{KeyPrevious}},
	"volume_up":        {keys: []int{KeyVolumeUp}},
	"volume_down":      {keys: []int{KeyVolumeDown}},
}

// Actions returns the valid action IDs, for documentation endpoints and
// error messages. The order is unspecified.
func Actions() []string {
	ids := make([]string, 0, len(actionTable))
	for id := range actionTable {
		ids = append(ids, id)
	}
	return ids
}
