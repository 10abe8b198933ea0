package domain

import "time"

// Tweet is a single post pulled from the social feed that may carry a token
// call. Contents is the raw post text handed to the token resolver.
type Tweet struct {
	ID        string
	Contents  string
	CreatedAt time.Time
}
