package heatmeter

import "errors"

var (
	// ErrNoDeviceNumber is returned for a telegram without register 9.20.
	ErrNoDeviceNumber = errors.New("heatmeter: telegram has no device number")

	// ErrBadIdentification is returned when the meter's first line is not
	// an identification message.
	ErrBadIdentification = errors.New("heatmeter: bad identification message")

	// ErrTelegramTooLong is returned when no end marker arrives within
	// maxTelegramLines lines.
	ErrTelegramTooLong = errors.New("heatmeter: telegram too long")

	// ErrMissingDevice is returned when setting up an entry without a device path.
	ErrMissingDevice = errors.New("heatmeter: entry has no device")
)
