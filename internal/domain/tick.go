package domain

import "time"

// TradeTick is the canonical price event produced by the market feed after
// normalizing the venue's heterogeneous payload shapes. PriceSol is always in
// SOL (the human-facing unit), never lamports.
type TradeTick struct {
	Mint     string
	PriceSol float64
	Received time.Time
}
