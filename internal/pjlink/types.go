package pjlink

import "fmt"

// Command identifies a PJLink request. The values are the tags reported to
// reply handlers, so the session layer can route replies without knowing the
// wire mnemonics.
type Command string

// Commands supported by the client.
const (
	CmdGetPowerState   Command = "getPowerState"
	CmdGetInput        Command = "getInput"
	CmdGetMute         Command = "getMute"
	CmdGetErrors       Command = "getErrors"
	CmdGetLamps        Command = "getLamps"
	CmdGetInputs       Command = "getInputs"
	CmdGetName         Command = "getName"
	CmdGetManufacturer Command = "getManufacturer"
	CmdGetModel        Command = "getModel"
	CmdGetInfo         Command = "getInfo"
	CmdGetClass        Command = "getClass"
	CmdPowerOn         Command = "powerOn"
	CmdPowerOff        Command = "powerOff"
	CmdSetInput        Command = "setInput"
	CmdSetMute         Command = "setMute"
)

// PowerState is the projector power status as reported by POWR.
type PowerState int

// Power states, numbered as on the wire.
const (
	PowerOff         PowerState = 0
	PowerOn          PowerState = 1
	PowerCoolingDown PowerState = 2
	PowerWarmingUp   PowerState = 3
)

// String returns the human-readable power state.
func (p PowerState) String() string {
	switch p {
	case PowerOff:
		return "Off"
	case PowerOn:
		return "On"
	case PowerCoolingDown:
		return "Cooling down"
	case PowerWarmingUp:
		return "Warming up"
	default:
		return fmt.Sprintf("PowerState(%d)", int(p))
	}
}

// Transitioning reports whether the projector is between on and off.
func (p PowerState) Transitioning() bool {
	return p == PowerCoolingDown || p == PowerWarmingUp
}

// Input is one projector input terminal.
//
// Code is the two-character wire code ("31"). Source is the terminal family
// derived from the first character and Channel the terminal number within it.
type Input struct {
	Code    string `json:"code"`
	Source  string `json:"source"`
	Channel string `json:"channel"`
}

// Mute is the combined AV mute state. PJLink has no query for a single
// channel, so both flags always travel together.
type Mute struct {
	Video bool `json:"video"`
	Audio bool `json:"audio"`
}

// Lamp is one entry of the LAMP reply.
type Lamp struct {
	On    bool `json:"on"`
	Hours int  `json:"hours"`
}

// ErrorReport holds the non-ok entries of the ERST reply, keyed by one of
// the ErrorKey constants. Values are SeverityWarning or SeverityError; an
// entry is absent when that subsystem is ok.
type ErrorReport map[string]string

// Error status keys in ERST reply order.
const (
	ErrorKeyFan         = "fan"
	ErrorKeyLamp        = "lamp"
	ErrorKeyTemperature = "temperature"
	ErrorKeyCover       = "cover"
	ErrorKeyFilter      = "filter"
	ErrorKeyOther       = "other"
)

// ErrorKeys lists the ERST fields in wire order.
var ErrorKeys = []string{
	ErrorKeyFan,
	ErrorKeyLamp,
	ErrorKeyTemperature,
	ErrorKeyCover,
	ErrorKeyFilter,
	ErrorKeyOther,
}

// Severity values used in ErrorReport.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// inputSources maps the first character of an input code to its family.
var inputSources = map[byte]string{
	'1': "RGB",
	'2': "VIDEO",
	'3': "DIGITAL",
	'4': "STORAGE",
	'5': "NETWORK",
	'6': "INTERNAL",
}
