package mqtt

import "fmt"

// Topic prefixes.
//
// Bridge topics follow graylogic/{protocol}/{device}/{kind}/{slot}; health
// follows the shared graylogic/health/{protocol}/{device} scheme.
const (
	// TopicPrefix is the root of every topic the bridge uses.
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment for PJLink bridges.
	Protocol = "pjlink"
)

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.SlotState("hall", "powerStatus")
//	// Returns: "graylogic/pjlink/hall/state/powerStatus"
type Topics struct{}

// SlotState returns the retained value topic of one slot.
//
// Example: graylogic/pjlink/hall/state/powerStatus
func (Topics) SlotState(deviceID, slot string) string {
	return fmt.Sprintf("%s/%s/%s/state/%s", TopicPrefix, Protocol, deviceID, slot)
}

// SlotMeta returns the retained definition topic of one slot.
//
// Example: graylogic/pjlink/hall/meta/input
func (Topics) SlotMeta(deviceID, slot string) string {
	return fmt.Sprintf("%s/%s/%s/meta/%s", TopicPrefix, Protocol, deviceID, slot)
}

// SlotSet returns the inbound write topic of one slot. Pass "+" as slot to
// subscribe to all of them.
//
// Example: graylogic/pjlink/hall/set/videoMute
func (Topics) SlotSet(deviceID, slot string) string {
	return fmt.Sprintf("%s/%s/%s/set/%s", TopicPrefix, Protocol, deviceID, slot)
}

// Health returns the retained health topic of one bridge.
//
// Example: graylogic/health/pjlink/hall
func (Topics) Health(deviceID string) string {
	return fmt.Sprintf("%s/health/%s/%s", TopicPrefix, Protocol, deviceID)
}

// AllSlotStates matches every slot value of every PJLink device.
//
// Pattern: graylogic/pjlink/+/state/+
func (Topics) AllSlotStates() string {
	return fmt.Sprintf("%s/%s/+/state/+", TopicPrefix, Protocol)
}

// AllHealth matches the health topics of every PJLink bridge.
//
// Pattern: graylogic/health/pjlink/+
func (Topics) AllHealth() string {
	return fmt.Sprintf("%s/health/%s/+", TopicPrefix, Protocol)
}
