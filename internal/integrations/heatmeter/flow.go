package heatmeter

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// Flow steps after the port picker.
const (
	StepManualPath     = "setup_serial_manual_path"
	StepBatteryOrMains = "battery_or_mains"
)

// Entry data keys.
const (
	KeyDevice          = "device"
	KeyBatteryOperated = "battery_operated"
	KeyModel           = "model"
	KeyDeviceNumber    = "device_number"
)

// configFlow picks a serial port, asks how the meter is powered and reads
// one telegram to learn the device number.
type configFlow struct {
	cfg    Config
	ports  PortLister
	reader MeterReader
	logger Logger

	device string
}

func (f *configFlow) portSchema() []flow.Field {
	ports, err := f.ports.Ports()
	if err != nil {
		f.logger.Warn("listing serial ports failed", "error", err)
	}
	opts := make([]flow.Option, 0, len(ports)+1)
	for _, p := range ports {
		opts = append(opts, flow.Option{Value: p.Device, Label: p.Label()})
	}
	opts = append(opts, flow.Option{Value: ManualPath, Label: ManualPath})
	return []flow.Field{{Name: KeyDevice, Type: flow.FieldSelect, Required: true, Options: opts}}
}

func manualSchema() []flow.Field {
	return []flow.Field{{Name: KeyDevice, Type: flow.FieldString, Required: true}}
}

func batterySchema() []flow.Field {
	return []flow.Field{{Name: KeyBatteryOperated, Type: flow.FieldBool, Required: true, Default: true}}
}

func (f *configFlow) Step(ctx context.Context, stepID string, input map[string]any) (flow.Result, error) {
	switch stepID {
	case flow.StepUser:
		if input == nil {
			return flow.ShowForm(flow.StepUser, f.portSchema(), nil), nil
		}
		device, _ := input[KeyDevice].(string) //nolint:errcheck // Coerced against the schema
		if device == ManualPath {
			return flow.ShowForm(StepManualPath, manualSchema(), nil), nil
		}
		f.device = SerialByID(device, f.cfg.SerialByIDDir)
		return flow.ShowForm(StepBatteryOrMains, batterySchema(), nil), nil

	case StepManualPath:
		if input == nil {
			return flow.ShowForm(StepManualPath, manualSchema(), nil), nil
		}
		f.device, _ = input[KeyDevice].(string) //nolint:errcheck // Coerced against the schema
		return flow.ShowForm(StepBatteryOrMains, batterySchema(), nil), nil

	case StepBatteryOrMains:
		if input == nil {
			return flow.ShowForm(StepBatteryOrMains, batterySchema(), nil), nil
		}
		battery, _ := input[KeyBatteryOperated].(bool) //nolint:errcheck // Coerced against the schema
		return f.validate(ctx, battery), nil

	default:
		return flow.Result{}, fmt.Errorf("heat meter flow has no step %q", stepID)
	}
}

// validate reads the meter once. Any failure re-shows the power source
// form with a cannot_connect error.
func (f *configFlow) validate(ctx context.Context, battery bool) flow.Result {
	readCtx, cancel := context.WithTimeout(ctx, f.cfg.ReadTimeout)
	defer cancel()

	rd, err := f.reader.Read(readCtx, f.device)
	if err != nil {
		f.logger.Warn("heat meter validation failed", "device", f.device, "error", err)
		shown := map[string]any{KeyBatteryOperated: battery}
		return flow.ShowForm(StepBatteryOrMains, flow.WithDefaults(batterySchema(), shown),
			map[string]string{flow.ErrorBase: flow.CodeCannotConnect})
	}

	return flow.CreateEntry(rd.Model, rd.DeviceNumber, map[string]any{
		KeyDevice:          f.device,
		KeyBatteryOperated: battery,
		KeyModel:           rd.Model,
		KeyDeviceNumber:    rd.DeviceNumber,
	})
}
