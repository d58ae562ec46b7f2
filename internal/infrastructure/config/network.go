package config

import "time"

// NetworkConfig holds the lockstep transport configuration consumed by
// cmd/simcore-server and cmd/simcore-client (SPEC_FULL.md §4.15/§4.16).
type NetworkConfig struct {
	// TCP address the server listens on for the reliable channel
	// (handshake, world transfer, catch-up). Clients dial the same address.
	TCPAddress string `mapstructure:"tcp_address" validate:"required"`

	// UDP address the server listens on for the unreliable per-frame
	// input channel.
	UDPAddress string `mapstructure:"udp_address" validate:"required"`

	// FBA (frame-buffer-advance) controls how aggressively a catching-up
	// client consumes buffered frames (spec.md §4.11).
	FBA uint64 `mapstructure:"fba" validate:"min=1"`

	// WorldFragmentSize bounds each chunk of the serialized world sent
	// during the initial transfer.
	WorldFragmentSize int `mapstructure:"world_fragment_size" validate:"min=1"`

	// HandshakeTimeout bounds how long the server waits for a client to
	// complete the Connect/Challenge/Connection exchange.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`

	// HistoryRetention is the number of recorded frame batches the server
	// keeps on hand for a catching-up client to replay.
	HistoryRetention int `mapstructure:"history_retention"`

	// UDPSilenceTimeout disconnects a playing client that has gone quiet
	// on the unreliable channel for this long. Client-side only.
	UDPSilenceTimeout time.Duration `mapstructure:"udp_silence_timeout"`
}
