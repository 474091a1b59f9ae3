package projector

import (
	"fmt"

	"github.com/nerrad567/gray-logic-pjlink/internal/pjlink"
	"github.com/nerrad567/gray-logic-pjlink/internal/state"
)

// Slot IDs written by the session.
const (
	SlotConnection = "info.connection"

	SlotPower       = "power"
	SlotPowerStatus = "powerStatus"
	SlotInput       = "input"
	SlotVideoMute   = "videoMute"
	SlotAudioMute   = "audioMute"

	SlotName         = "info.name"
	SlotManufacturer = "info.manufacturer"
	SlotModel        = "info.model"
	SlotClass        = "info.class"
	SlotOtherInfo    = "info.other"
	SlotInputs       = "info.inputs"
)

// errorSlots maps ERST keys to their severity slots.
var errorSlots = map[string]string{
	pjlink.ErrorKeyFan:         "errors.fan",
	pjlink.ErrorKeyLamp:        "errors.lamp",
	pjlink.ErrorKeyTemperature: "errors.temperature",
	pjlink.ErrorKeyCover:       "errors.cover",
	pjlink.ErrorKeyFilter:      "errors.filter",
	pjlink.ErrorKeyOther:       "errors.other",
}

// Severity codes written to the error slots.
const (
	severityOK      = 0
	severityWarning = 1
	severityError   = 3
)

var severityStates = map[string]string{"0": "OK", "1": "Warning", "3": "Error"}

// controlSlots are the user-writable slots the session subscribes to.
var controlSlots = []string{SlotPower, SlotInput, SlotVideoMute, SlotAudioMute}

// LampStatusSlot returns the status slot ID for a 1-based lamp index.
func LampStatusSlot(index int) string {
	return fmt.Sprintf("lamp.%d.status", index)
}

// LampHoursSlot returns the hours slot ID for a 1-based lamp index.
func LampHoursSlot(index int) string {
	return fmt.Sprintf("lamp.%d.hours", index)
}

func lampDefinitions(index int) []state.Definition {
	return []state.Definition{
		{
			ID:   LampStatusSlot(index),
			Name: fmt.Sprintf("Lamp %d status", index),
			Type: state.TypeNumber, Role: "indicator.lamp", Read: true,
			States: map[string]string{"0": "Off", "1": "On"},
		},
		{
			ID:   LampHoursSlot(index),
			Name: fmt.Sprintf("Lamp %d hours", index),
			Type: state.TypeNumber, Role: "value.hours", Unit: "h", Read: true,
		},
	}
}

func powerStatusStates() map[string]string {
	return map[string]string{
		"0": pjlink.PowerOff.String(),
		"1": pjlink.PowerOn.String(),
		"2": pjlink.PowerCoolingDown.String(),
		"3": pjlink.PowerWarmingUp.String(),
	}
}

func inputDefinition(states map[string]string) state.Definition {
	return state.Definition{
		ID: SlotInput, Name: "Input", Type: state.TypeString, Role: "media.input",
		Read: true, Write: true, States: states,
	}
}

// staticDefinitions lists every slot that exists regardless of what the
// projector reports. Lamp 1 is static; further lamps are created on demand.
func staticDefinitions() []state.Definition {
	defs := []state.Definition{
		{ID: SlotConnection, Name: "Connected to projector", Type: state.TypeBoolean, Role: "indicator.connected", Read: true},

		{ID: SlotPower, Name: "Power toggle", Type: state.TypeBoolean, Role: "button.power", Read: true, Write: true},
		{ID: SlotPowerStatus, Name: "Power status", Type: state.TypeNumber, Role: "value.power", Read: true, States: powerStatusStates()},
		inputDefinition(nil),
		{ID: SlotVideoMute, Name: "Video mute", Type: state.TypeBoolean, Role: "switch.mute.video", Read: true, Write: true},
		{ID: SlotAudioMute, Name: "Audio mute", Type: state.TypeBoolean, Role: "switch.mute.audio", Read: true, Write: true},

		{ID: SlotName, Name: "Projector name", Type: state.TypeString, Role: "info.name", Read: true},
		{ID: SlotManufacturer, Name: "Manufacturer", Type: state.TypeString, Role: "info.manufacturer", Read: true},
		{ID: SlotModel, Name: "Model", Type: state.TypeString, Role: "info.model", Read: true},
		{ID: SlotClass, Name: "PJLink class", Type: state.TypeNumber, Role: "info.class", Read: true},
		{ID: SlotOtherInfo, Name: "Other information", Type: state.TypeString, Role: "info.other", Read: true},
		{ID: SlotInputs, Name: "Available inputs", Type: state.TypeString, Role: "info.inputs", Read: true},
	}

	for _, key := range pjlink.ErrorKeys {
		defs = append(defs, state.Definition{
			ID:   errorSlots[key],
			Name: fmt.Sprintf("Error status %s", key),
			Type: state.TypeNumber, Role: "indicator.error", Read: true,
			States: severityStates,
		})
	}

	return append(defs, lampDefinitions(1)...)
}
