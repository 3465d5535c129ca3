// Package minecraft sets up and polls Minecraft Java Edition servers.
//
// The setup flow parses the address the user typed, pings the server and
// derives the entry title and unique ID. A symbolic host is keyed by its
// service record when it has one. An IP literal is keyed by the server's
// MAC address from the ARP table. A server that does not answer fails
// the form with "cannot_connect".
//
// Configured entries are polled on a fixed interval. Each poll publishes
// the version, player counts, MOTD and latency. An unreachable server
// publishes online = false rather than an error.
package minecraft
