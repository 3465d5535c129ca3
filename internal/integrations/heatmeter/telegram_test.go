package heatmeter

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// sampleTelegram is a UH50 telegram without its identification line.
const sampleTelegram = `6.8(0328.872*MWh)6.26(03329.68*m3)9.21(66153690)
6.26*01(03188.97*m3)6.8*01(0314.024*MWh)
F(0)9.20(66153690)6.35(60*m)
6.6(0017.2*kW)6.6*01(0017.2*kW)6.33(000.746*m3ph)9.4(098.5*C&091.1*C)
6.31(0030857*h)6.32(0000000*h)9.22(R)9.6(000&66153690&0)
9.7(20000)6.32*01(0000000*h)6.36(01-01&00:00)6.33*01(000.746*m3ph)
6.8.1()6.8.2()6.8.3()6.8.4()6.8.5()
9.4*01(098.5*C&091.1*C)
6.36.1(2013-11-28)6.36.1*01(2013-11-28)
6.36*02(01&00:00)9.36(2022-05-19&11:57:21)9.24(0.6*m3ph)
9.1(0&1&0&0011&CECV&CECV&1&5.11&5.11&F&101008&040404&08&0)
9.2(&&)9.29()9.31(0028604*h)
6.26.1()6.26.4()6.26.5()0.0(66153690)`

func sampleLines() []string {
	return strings.Split(sampleTelegram, "\n")
}

func TestParseTelegram(t *testing.T) {
	rd, err := ParseTelegram("LUGCUH50", sampleLines())
	if err != nil {
		t.Fatalf("ParseTelegram() error = %v", err)
	}

	if rd.Model != "LUGCUH50" || rd.DeviceNumber != "66153690" || rd.OwnershipNumber != "66153690" {
		t.Errorf("identity = %q %q %q", rd.Model, rd.DeviceNumber, rd.OwnershipNumber)
	}
	if rd.ErrorNumber != "0" {
		t.Errorf("ErrorNumber = %q", rd.ErrorNumber)
	}

	floats := []struct {
		name string
		got  float64
		want float64
	}{
		{"HeatUsage", rd.HeatUsage, 328.872},
		{"HeatPreviousYear", rd.HeatPreviousYear, 314.024},
		{"VolumeM3", rd.VolumeM3, 3329.68},
		{"VolumePreviousYearM3", rd.VolumePreviousYearM3, 3188.97},
		{"PowerMaxKW", rd.PowerMaxKW, 17.2},
		{"PowerMaxPreviousYearKW", rd.PowerMaxPreviousYearKW, 17.2},
		{"FlowrateMaxM3ph", rd.FlowrateMaxM3ph, 0.746},
		{"FlowrateMaxPreviousYearM3ph", rd.FlowrateMaxPreviousYearM3ph, 0.746},
		{"FlowTemperatureMaxC", rd.FlowTemperatureMaxC, 98.5},
		{"ReturnTemperatureMaxC", rd.ReturnTemperatureMaxC, 91.1},
		{"FlowTemperatureMaxPreviousYearC", rd.FlowTemperatureMaxPreviousYearC, 98.5},
		{"ReturnTemperatureMaxPreviousYearC", rd.ReturnTemperatureMaxPreviousYearC, 91.1},
	}
	for _, f := range floats {
		if f.got != f.want {
			t.Errorf("%s = %v, want %v", f.name, f.got, f.want)
		}
	}

	if rd.HeatUnit != "MWh" || rd.HeatPreviousYearUnit != "MWh" {
		t.Errorf("units = %q, %q", rd.HeatUnit, rd.HeatPreviousYearUnit)
	}
	if rd.MeasurementPeriodMins != 60 || rd.OperatingHours != 30857 || rd.FaultHours != 0 {
		t.Errorf("ints = %d %d %d", rd.MeasurementPeriodMins, rd.OperatingHours, rd.FaultHours)
	}
	want := time.Date(2022, 5, 19, 11, 57, 21, 0, time.Local)
	if !rd.MeterDateTime.Equal(want) {
		t.Errorf("MeterDateTime = %v, want %v", rd.MeterDateTime, want)
	}
}

func TestParseTelegram_Errors(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"empty", nil},
		{"no device number", []string{"6.8(0328.872*MWh)9.21(66153690)"}},
		{"empty device number", []string{"9.20()"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTelegram("LUGCUH50", tt.lines); !errors.Is(err, ErrNoDeviceNumber) {
				t.Errorf("ParseTelegram() error = %v, want ErrNoDeviceNumber", err)
			}
		})
	}
}

func TestParseTelegram_GigajouleMeter(t *testing.T) {
	rd, err := ParseTelegram("LUGCUH50", []string{"6.8(0001.234*GJ)9.20(12345678)", "6.35(garbage*m)"})
	if err != nil {
		t.Fatal(err)
	}
	if rd.HeatUsage != 1.234 || rd.HeatUnit != "GJ" {
		t.Errorf("heat = %v %s", rd.HeatUsage, rd.HeatUnit)
	}
	if rd.MeasurementPeriodMins != 0 {
		t.Errorf("unparsable register set MeasurementPeriodMins = %d", rd.MeasurementPeriodMins)
	}

	s := rd.State()
	if s["heat_usage_gj"] != 1.234 {
		t.Errorf("heat_usage_gj = %v", s["heat_usage_gj"])
	}
	if _, ok := s["meter_date_time"]; ok {
		t.Error("meter_date_time present without register 9.36")
	}
}

func TestSplitRegisters(t *testing.T) {
	regs := splitRegisters("9.4(098.5*C&091.1*C)F(0)9.29()")
	if len(regs) != 3 {
		t.Fatalf("got %d registers: %+v", len(regs), regs)
	}
	if regs[0].code != "9.4" || len(regs[0].values) != 2 || regs[0].unit(1) != "C" {
		t.Errorf("regs[0] = %+v", regs[0])
	}
	if regs[1].code != "F" || regs[1].str(0) != "0" {
		t.Errorf("regs[1] = %+v", regs[1])
	}
	if regs[2].code != "9.29" || len(regs[2].values) != 0 {
		t.Errorf("regs[2] = %+v", regs[2])
	}
	if got := splitRegisters("6.8(unterminated"); len(got) != 0 {
		t.Errorf("unterminated register parsed: %+v", got)
	}
}
