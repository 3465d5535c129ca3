// Package heatmeter reads Landis+Gyr Ultraheat heat meters over an
// optical IEC 62056-21 head.
//
// The setup flow lists local serial ports, or accepts a path typed by
// hand, and reads the meter once to confirm it answers. The entry is
// keyed by the meter's device number. Battery-powered meters are read
// once a day and mains-powered meters once an hour.
package heatmeter
