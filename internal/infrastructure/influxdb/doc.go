// Package influxdb records the history of integration state.
//
// Each state update becomes one point in the integration_state
// measurement, tagged with domain, entry_id and title. Numeric and
// boolean state values are the fields, so a heat meter's heat usage or a
// Minecraft server's player count can be graphed over time.
//
// Writes are non-blocking and batched; failures arrive through the
// SetOnError callback.
package influxdb
