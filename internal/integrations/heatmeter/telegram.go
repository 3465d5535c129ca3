package heatmeter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reading is the content of one Ultraheat telegram. Registers the meter
// did not send keep their zero value.
type Reading struct {
	Model           string    `json:"model"`
	DeviceNumber    string    `json:"device_number"`
	OwnershipNumber string    `json:"ownership_number,omitempty"`
	ErrorNumber     string    `json:"error_number,omitempty"`
	MeterDateTime   time.Time `json:"meter_date_time,omitzero"`

	HeatUsage             float64 `json:"heat_usage"`
	HeatUnit              string  `json:"heat_unit,omitempty"`
	HeatPreviousYear      float64 `json:"heat_previous_year"`
	HeatPreviousYearUnit  string  `json:"heat_previous_year_unit,omitempty"`
	VolumeM3              float64 `json:"volume_usage_m3"`
	VolumePreviousYearM3  float64 `json:"volume_previous_year_m3"`
	MeasurementPeriodMins int     `json:"measurement_period_minutes"`

	PowerMaxKW             float64 `json:"power_max_kw"`
	PowerMaxPreviousYearKW float64 `json:"power_max_previous_year_kw"`

	FlowrateMaxM3ph             float64 `json:"flowrate_max_m3ph"`
	FlowrateMaxPreviousYearM3ph float64 `json:"flowrate_max_previous_year_m3ph"`

	FlowTemperatureMaxC               float64 `json:"flow_temperature_max_c"`
	ReturnTemperatureMaxC             float64 `json:"return_temperature_max_c"`
	FlowTemperatureMaxPreviousYearC   float64 `json:"flow_temperature_max_previous_year_c"`
	ReturnTemperatureMaxPreviousYearC float64 `json:"return_temperature_max_previous_year_c"`

	OperatingHours int `json:"operating_hours"`
	FaultHours     int `json:"fault_hours"`
}

// register is one code(value*unit&value*unit) group of a data line.
type register struct {
	code   string
	values []registerValue
}

type registerValue struct {
	value string
	unit  string
}

// splitRegisters splits a data line such as
// "6.8(0328.872*MWh)6.26(03329.68*m3)9.21(66153690)" into its registers.
func splitRegisters(line string) []register {
	var regs []register
	rest := strings.TrimSpace(line)
	for rest != "" {
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], ')')
		if end < 0 {
			break
		}
		end += open

		reg := register{code: strings.TrimSpace(rest[:open])}
		if body := rest[open+1 : end]; body != "" {
			for _, part := range strings.Split(body, "&") {
				v, u, _ := strings.Cut(part, "*")
				reg.values = append(reg.values, registerValue{value: v, unit: u})
			}
		}
		regs = append(regs, reg)
		rest = rest[end+1:]
	}
	return regs
}

func (r register) float(i int) (float64, bool) {
	if i >= len(r.values) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(r.values[i].value), 64)
	return f, err == nil
}

func (r register) int(i int) (int, bool) {
	f, ok := r.float(i)
	return int(f), ok
}

func (r register) str(i int) string {
	if i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i].value)
}

func (r register) unit(i int) string {
	if i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i].unit)
}

// meterTimeLayout is the format of register 9.36 once its two values are
// joined with a space.
const meterTimeLayout = "2006-01-02 15:04:05"

// ParseTelegram extracts the known registers from the data lines of a
// telegram. The identification line and unknown registers are ignored.
func ParseTelegram(model string, lines []string) (*Reading, error) {
	rd := &Reading{Model: model}

	for _, line := range lines {
		for _, reg := range splitRegisters(line) {
			applyRegister(rd, reg)
		}
	}
	if rd.DeviceNumber == "" {
		return nil, ErrNoDeviceNumber
	}
	return rd, nil
}

func applyRegister(rd *Reading, reg register) {
	setFloat := func(dst *float64, i int) {
		if f, ok := reg.float(i); ok {
			*dst = f
		}
	}
	setInt := func(dst *int) {
		if n, ok := reg.int(0); ok {
			*dst = n
		}
	}

	switch reg.code {
	case "6.8":
		setFloat(&rd.HeatUsage, 0)
		rd.HeatUnit = reg.unit(0)
	case "6.8*01":
		setFloat(&rd.HeatPreviousYear, 0)
		rd.HeatPreviousYearUnit = reg.unit(0)
	case "6.26":
		setFloat(&rd.VolumeM3, 0)
	case "6.26*01":
		setFloat(&rd.VolumePreviousYearM3, 0)
	case "9.21":
		rd.OwnershipNumber = reg.str(0)
	case "9.20":
		rd.DeviceNumber = reg.str(0)
	case "F":
		rd.ErrorNumber = reg.str(0)
	case "6.35":
		setInt(&rd.MeasurementPeriodMins)
	case "6.6":
		setFloat(&rd.PowerMaxKW, 0)
	case "6.6*01":
		setFloat(&rd.PowerMaxPreviousYearKW, 0)
	case "6.33":
		setFloat(&rd.FlowrateMaxM3ph, 0)
	case "6.33*01":
		setFloat(&rd.FlowrateMaxPreviousYearM3ph, 0)
	case "9.4":
		setFloat(&rd.FlowTemperatureMaxC, 0)
		setFloat(&rd.ReturnTemperatureMaxC, 1)
	case "9.4*01":
		setFloat(&rd.FlowTemperatureMaxPreviousYearC, 0)
		setFloat(&rd.ReturnTemperatureMaxPreviousYearC, 1)
	case "6.31":
		setInt(&rd.OperatingHours)
	case "6.32":
		setInt(&rd.FaultHours)
	case "9.36":
		if t, err := time.ParseInLocation(meterTimeLayout, reg.str(0)+" "+reg.str(1), time.Local); err == nil {
			rd.MeterDateTime = t
		}
	}
}

// State returns the published fields of the reading.
func (rd *Reading) State() map[string]any {
	s := map[string]any{
		"model":                                 rd.Model,
		"device_number":                         rd.DeviceNumber,
		"ownership_number":                      rd.OwnershipNumber,
		"error_number":                          rd.ErrorNumber,
		"heat_usage":                            rd.HeatUsage,
		"heat_unit":                             rd.HeatUnit,
		"heat_previous_year":                    rd.HeatPreviousYear,
		"volume_usage_m3":                       rd.VolumeM3,
		"volume_previous_year_m3":               rd.VolumePreviousYearM3,
		"measurement_period_minutes":            rd.MeasurementPeriodMins,
		"power_max_kw":                          rd.PowerMaxKW,
		"power_max_previous_year_kw":            rd.PowerMaxPreviousYearKW,
		"flowrate_max_m3ph":                     rd.FlowrateMaxM3ph,
		"flowrate_max_previous_year_m3ph":       rd.FlowrateMaxPreviousYearM3ph,
		"flow_temperature_max_c":                rd.FlowTemperatureMaxC,
		"return_temperature_max_c":              rd.ReturnTemperatureMaxC,
		"flow_temperature_max_previous_year_c":  rd.FlowTemperatureMaxPreviousYearC,
		"return_temperature_max_previous_year_c": rd.ReturnTemperatureMaxPreviousYearC,
		"operating_hours":                       rd.OperatingHours,
		"fault_hours":                           rd.FaultHours,
	}
	if rd.HeatUnit != "" {
		s[fmt.Sprintf("heat_usage_%s", strings.ToLower(rd.HeatUnit))] = rd.HeatUsage
	}
	if !rd.MeterDateTime.IsZero() {
		s["meter_date_time"] = rd.MeterDateTime.Format(time.RFC3339)
	}
	return s
}
