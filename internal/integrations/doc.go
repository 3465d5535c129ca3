// Package integrations runs the configured entries of every integration.
//
// An Integration contributes a setup flow and knows how to start a
// Runtime for one of its stored entries. The Manager loads all stored
// entries at startup, sets up the ones created by a finished flow, and
// stops them on unload or shutdown. Runtimes report state through a
// StatePublisher; the Fanout publisher forwards each update to MQTT,
// InfluxDB and WebSocket clients.
package integrations
