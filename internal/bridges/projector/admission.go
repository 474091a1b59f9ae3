package projector

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-pjlink/internal/pjlink"
	"github.com/nerrad567/gray-logic-pjlink/internal/state"
)

// Mute channel tags.
const (
	channelVideo = "video"
	channelAudio = "audio"
)

// handleControl reacts to user writes on the control slots. Device
// confirmations (ack=true), including the session's own writes, are ignored.
func (s *Session) handleControl(change state.Change) {
	if change.Value.Ack {
		return
	}

	switch change.ID {
	case SlotPower:
		if truthy(change.Value.Val) {
			s.togglePower()
		}
	case SlotVideoMute:
		s.changeMute(channelVideo, change.Value.Val)
	case SlotAudioMute:
		s.changeMute(channelAudio, change.Value.Val)
	case SlotInput:
		s.selectInput(change.Value.Val)
	default:
		s.logger.Debug("ignoring write to non-control slot", "slot", change.ID)
	}
}

// togglePower flips the projector's power based on its last reported state.
// The power slot is momentary and is reset before anything else happens.
func (s *Session) togglePower() {
	s.write(SlotPower, false)

	if !s.ctx.powerKnown {
		s.logger.Info("power toggle refused: power state not yet reported")
		return
	}

	switch power := s.ctx.power; {
	case power.Transitioning():
		s.logger.Info("power toggle refused: projector is transitioning", "power_state", power.String())
	case power == pjlink.PowerOff:
		s.logger.Info("powering projector on")
		s.transport.PowerOn(s.replyTo(pjlink.CmdPowerOn))
	case power == pjlink.PowerOn:
		s.logger.Info("powering projector off")
		s.transport.PowerOff(s.replyTo(pjlink.CmdPowerOff))
	default:
		s.logger.Warn("power toggle refused: unknown power state", "power_state", power.String())
	}
}

// changeMute sends both channels: the requested one and the other channel's
// last device-confirmed value.
func (s *Session) changeMute(channel string, val any) {
	on, ok := val.(bool)
	if !ok {
		s.logger.Warn("mute write ignored", "channel", channel, "error", anomaly(val))
		return
	}

	m := s.ctx.mute
	switch channel {
	case channelVideo:
		m.Video = on
	case channelAudio:
		m.Audio = on
	default:
		s.logger.Error("mute write ignored", "error", fmt.Errorf("unknown mute channel %q", channel))
		return
	}

	s.transport.SetMute(m, s.replyTo(pjlink.CmdSetMute))
}

// selectInput forwards the raw value; the transport validates the code.
// A cleared (nil) value is not a selection.
func (s *Session) selectInput(val any) {
	if val == nil {
		s.logger.Debug("ignoring empty input write")
		return
	}
	code := fmt.Sprint(val)
	s.logger.Info("selecting input", "input", code)
	s.transport.SetInput(code, s.replyTo(pjlink.CmdSetInput))
}

// truthy interprets a user write as a boolean request.
func truthy(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "on":
			return true
		}
	}
	return false
}
