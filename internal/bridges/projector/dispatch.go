package projector

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-pjlink/internal/pjlink"
)

// cadence is the poll timer a reply keeps warm.
func cadence(cmd pjlink.Command) (TimerName, bool) {
	switch cmd {
	case pjlink.CmdGetPowerState, pjlink.CmdGetInput, pjlink.CmdGetMute:
		return TimerStatusPoll, true
	case pjlink.CmdGetErrors, pjlink.CmdGetLamps, pjlink.CmdGetInputs, pjlink.CmdGetName,
		pjlink.CmdGetManufacturer, pjlink.CmdGetModel, pjlink.CmdGetInfo, pjlink.CmdGetClass:
		return TimerInfoPoll, true
	default:
		return 0, false
	}
}

// handleReply routes one transport outcome.
func (s *Session) handleReply(cmd pjlink.Command, value any, err error) {
	if err != nil {
		s.enterDisconnected(cmd, err)
		return
	}
	if value == nil {
		// Confirmation-only reply.
		return
	}

	s.repliesTotal.Add(1)
	s.lastReply.Store(time.Now().UnixMilli())

	if !s.ctx.connected {
		s.enterConnected()
	} else if name, ok := cadence(cmd); ok {
		s.timers.Refresh(name)
	}

	if err := s.project(cmd, value); err != nil {
		s.logger.Warn("reply not projected", "command", string(cmd), "error", err)
	}
}

// project decodes a reply payload into slot writes.
func (s *Session) project(cmd pjlink.Command, value any) error {
	switch cmd {
	case pjlink.CmdGetPowerState:
		p, ok := value.(pjlink.PowerState)
		if !ok {
			return anomaly(value)
		}
		s.ctx.power = p
		s.ctx.powerKnown = true
		s.powerCode.Store(int32(p))
		s.write(SlotPowerStatus, int(p))

	case pjlink.CmdGetInput:
		in, ok := value.(pjlink.Input)
		if !ok {
			return anomaly(value)
		}
		s.write(SlotInput, in.Code)

	case pjlink.CmdGetMute:
		m, ok := value.(pjlink.Mute)
		if !ok {
			return anomaly(value)
		}
		s.ctx.mute = m
		s.write(SlotVideoMute, m.Video)
		s.write(SlotAudioMute, m.Audio)

	case pjlink.CmdGetErrors:
		report, ok := value.(pjlink.ErrorReport)
		if !ok {
			return anomaly(value)
		}
		s.projectErrors(report)

	case pjlink.CmdGetLamps:
		lamps, ok := value.([]pjlink.Lamp)
		if !ok {
			return anomaly(value)
		}
		s.projectLamps(lamps)

	case pjlink.CmdGetInputs:
		if err := s.writeDescriptive(SlotInputs, value); err != nil {
			return err
		}
		if inputs, ok := value.([]pjlink.Input); ok {
			s.describeInputs(inputs)
		}

	case pjlink.CmdGetName:
		return s.writeDescriptive(SlotName, value)
	case pjlink.CmdGetManufacturer:
		return s.writeDescriptive(SlotManufacturer, value)
	case pjlink.CmdGetModel:
		return s.writeDescriptive(SlotModel, value)
	case pjlink.CmdGetInfo:
		return s.writeDescriptive(SlotOtherInfo, value)

	case pjlink.CmdGetClass:
		class, ok := value.(int)
		if !ok {
			return anomaly(value)
		}
		s.write(SlotClass, class)

	default:
		s.logger.Info("ignoring reply to unsupported command", "command", string(cmd))
	}
	return nil
}

// projectErrors writes all six severities. Subsystems missing from the
// report are ok.
func (s *Session) projectErrors(report pjlink.ErrorReport) {
	for _, key := range pjlink.ErrorKeys {
		severity := severityOK
		switch report[key] {
		case pjlink.SeverityWarning:
			severity = severityWarning
		case pjlink.SeverityError:
			severity = severityError
		}
		s.write(errorSlots[key], severity)
	}
}

// projectLamps writes each lamp, creating slots for indices not seen
// before. Slots of lamps that are no longer reported are kept.
func (s *Session) projectLamps(lamps []pjlink.Lamp) {
	for i, lamp := range lamps {
		index := i + 1
		if index > s.ctx.lampSlots {
			if !s.ensureLampSlots(index) {
				continue
			}
		}

		status := 0
		if lamp.On {
			status = 1
		}
		s.write(LampStatusSlot(index), status)
		s.write(LampHoursSlot(index), lamp.Hours)
	}
}

func (s *Session) ensureLampSlots(index int) bool {
	for _, def := range lampDefinitions(index) {
		created, err := s.store.Ensure(def)
		if err != nil {
			s.logger.Error("creating lamp slot failed", "slot", def.ID, "error", err)
			return false
		}
		if created {
			s.logger.Info("lamp slot created", "slot", def.ID)
		}
	}
	s.ctx.lampSlots = index
	return true
}

// writeDescriptive writes text as-is and anything else as JSON.
func (s *Session) writeDescriptive(id string, value any) error {
	if text, ok := value.(string); ok {
		s.write(id, text)
		return nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeAnomaly, err)
	}
	s.write(id, string(b))
	return nil
}

// describeInputs attaches the reported input list to the input slot as its
// states, so observers can show names instead of codes.
func (s *Session) describeInputs(inputs []pjlink.Input) {
	states := make(map[string]string, len(inputs))
	key := ""
	for _, in := range inputs {
		states[in.Code] = fmt.Sprintf("%s %s", in.Source, in.Channel)
		key += in.Code + " "
	}
	if key == s.ctx.inputs {
		return
	}
	s.ctx.inputs = key

	if err := s.store.Define(inputDefinition(states)); err != nil {
		s.logger.Error("updating input slot failed", "error", err)
	}
}

func anomaly(value any) error {
	return fmt.Errorf("%w: %T", ErrDecodeAnomaly, value)
}
