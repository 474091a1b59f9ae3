package projector

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-pjlink/internal/pjlink"
)

func TestProject_PowerState(t *testing.T) {
	h := newTestHarness(t)
	h.connect(t)

	h.answer(t, pjlink.CmdGetPowerState, pjlink.PowerWarmingUp, nil)

	if got := h.store.Val(SlotPowerStatus); got != 3 {
		t.Errorf("powerStatus = %v, want 3", got)
	}
	if h.session.ctx.power != pjlink.PowerWarmingUp || !h.session.ctx.powerKnown {
		t.Errorf("context power = %v known=%v", h.session.ctx.power, h.session.ctx.powerKnown)
	}
}

func TestProject_InputAndMute(t *testing.T) {
	h := newTestHarness(t)
	h.connect(t)

	h.answer(t, pjlink.CmdGetInput, pjlink.Input{Code: "31", Source: "DIGITAL", Channel: "1"}, nil)
	h.answer(t, pjlink.CmdGetMute, pjlink.Mute{Video: true}, nil)

	if got := h.store.Val(SlotInput); got != "31" {
		t.Errorf("input = %v, want 31", got)
	}
	if got := h.store.Val(SlotVideoMute); got != true {
		t.Errorf("videoMute = %v, want true", got)
	}
	if got := h.store.Val(SlotAudioMute); got != false {
		t.Errorf("audioMute = %v, want false", got)
	}
	if diff := cmp.Diff(pjlink.Mute{Video: true}, h.session.ctx.mute); diff != "" {
		t.Errorf("context mute mismatch (-want +got):\n%s", diff)
	}
}

func TestProject_Errors(t *testing.T) {
	h := newTestHarness(t)
	h.connect(t)

	h.answer(t, pjlink.CmdGetErrors, pjlink.ErrorReport{
		pjlink.ErrorKeyFan:  pjlink.SeverityError,
		pjlink.ErrorKeyLamp: pjlink.SeverityWarning,
	}, nil)

	want := map[string]any{
		"errors.fan":         3,
		"errors.lamp":        1,
		"errors.temperature": 0,
		"errors.cover":       0,
		"errors.filter":      0,
		"errors.other":       0,
	}
	got := make(map[string]any, len(want))
	for id := range want {
		got[id] = h.store.Val(id)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("error slots mismatch (-want +got):\n%s", diff)
	}
}

func TestProject_LampsCreateSlots(t *testing.T) {
	h := newTestHarness(t)
	h.connect(t)

	h.answer(t, pjlink.CmdGetLamps, []pjlink.Lamp{
		{On: true, Hours: 120},
		{On: false, Hours: 40},
	}, nil)

	want := map[string]any{
		LampStatusSlot(1): 1,
		LampHoursSlot(1):  120,
		LampStatusSlot(2): 0,
		LampHoursSlot(2):  40,
	}
	for id, v := range want {
		if !h.store.Has(id) {
			t.Errorf("slot %q not created", id)
			continue
		}
		if got := h.store.Val(id); got != v {
			t.Errorf("%s = %v, want %v", id, got, v)
		}
	}

	// A later report with fewer lamps keeps the slots.
	h.advance(testInfoInterval)
	h.answer(t, pjlink.CmdGetLamps, []pjlink.Lamp{{On: true, Hours: 121}}, nil)

	if !h.store.Has(LampStatusSlot(2)) {
		t.Error("lamp 2 slot removed")
	}
	if got := h.store.Val(LampHoursSlot(1)); got != 121 {
		t.Errorf("lamp 1 hours = %v, want 121", got)
	}
	if got := h.store.Val(LampHoursSlot(2)); got != 40 {
		t.Errorf("lamp 2 hours = %v, want 40", got)
	}
}

func TestProject_Descriptive(t *testing.T) {
	h := newTestHarness(t)
	h.connect(t)

	h.answer(t, pjlink.CmdGetName, "Boardroom", nil)
	h.answer(t, pjlink.CmdGetManufacturer, "EPSON", nil)
	h.answer(t, pjlink.CmdGetModel, "EB-L1100U", nil)
	h.answer(t, pjlink.CmdGetInfo, "", nil)
	h.answer(t, pjlink.CmdGetClass, 1, nil)

	want := map[string]any{
		SlotName:         "Boardroom",
		SlotManufacturer: "EPSON",
		SlotModel:        "EB-L1100U",
		SlotOtherInfo:    "",
		SlotClass:        1,
	}
	for id, v := range want {
		if got := h.store.Val(id); got != v {
			t.Errorf("%s = %#v, want %#v", id, got, v)
		}
	}
}

func TestProject_InputsDescribeInputSlot(t *testing.T) {
	h := newTestHarness(t)
	h.connect(t)

	inputs := []pjlink.Input{
		{Code: "11", Source: "RGB", Channel: "1"},
		{Code: "31", Source: "DIGITAL", Channel: "1"},
	}
	h.answer(t, pjlink.CmdGetInputs, inputs, nil)

	wantJSON := `[{"code":"11","source":"RGB","channel":"1"},{"code":"31","source":"DIGITAL","channel":"1"}]`
	if got := h.store.Val(SlotInputs); got != wantJSON {
		t.Errorf("info.inputs = %v, want %s", got, wantJSON)
	}

	h.store.mu.Lock()
	def := h.store.defs[SlotInput]
	h.store.mu.Unlock()

	want := map[string]string{"11": "RGB 1", "31": "DIGITAL 1"}
	if diff := cmp.Diff(want, def.States); diff != "" {
		t.Errorf("input states mismatch (-want +got):\n%s", diff)
	}
	if !def.Write {
		t.Error("input slot lost its write flag")
	}
}

func TestProject_UnsupportedCommandIgnored(t *testing.T) {
	h := newTestHarness(t)
	h.connect(t)

	if err := h.session.project(pjlink.Command("getLampHours"), "42"); err != nil {
		t.Errorf("project() error = %v, want nil", err)
	}
	if !h.session.ctx.connected {
		t.Error("unknown command disconnected the session")
	}
}

func TestProject_DecodeAnomaly(t *testing.T) {
	h := newTestHarness(t)
	h.connect(t)

	tests := []struct {
		cmd   pjlink.Command
		value any
	}{
		{pjlink.CmdGetPowerState, "on"},
		{pjlink.CmdGetInput, 31},
		{pjlink.CmdGetMute, true},
		{pjlink.CmdGetErrors, "000000"},
		{pjlink.CmdGetLamps, 120},
		{pjlink.CmdGetClass, "1"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			err := h.session.project(tt.cmd, tt.value)
			if err == nil {
				t.Fatal("project() error = nil, want anomaly")
			}
			if !errors.Is(err, ErrDecodeAnomaly) {
				t.Errorf("project() error = %v, want ErrDecodeAnomaly", err)
			}
		})
	}

	// Anomalies never move the session out of Connected.
	if got := h.store.Val(SlotConnection); got != true {
		t.Errorf("info.connection = %v, want true", got)
	}
}

func TestCadence(t *testing.T) {
	tests := []struct {
		cmd    pjlink.Command
		want   TimerName
		wantOK bool
	}{
		{pjlink.CmdGetPowerState, TimerStatusPoll, true},
		{pjlink.CmdGetInput, TimerStatusPoll, true},
		{pjlink.CmdGetMute, TimerStatusPoll, true},
		{pjlink.CmdGetErrors, TimerInfoPoll, true},
		{pjlink.CmdGetLamps, TimerInfoPoll, true},
		{pjlink.CmdGetClass, TimerInfoPoll, true},
		{pjlink.CmdPowerOn, 0, false},
		{pjlink.CmdSetMute, 0, false},
	}
	for _, tt := range tests {
		got, ok := cadence(tt.cmd)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("cadence(%s) = (%v, %v), want (%v, %v)", tt.cmd, got, ok, tt.want, tt.wantOK)
		}
	}
}
