// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// DiscordID represents a Discord snowflake identifier (17-20 digits).
type DiscordID string

var discordIDRegex = regexp.MustCompile(`^[0-9]{17,20}$`)

// IsValid checks if the Discord ID looks like a snowflake.
func (d DiscordID) IsValid() bool {
	return discordIDRegex.MatchString(string(d))
}

// String returns the string representation.
func (d DiscordID) String() string {
	return string(d)
}

// NewDiscordID validates and creates a DiscordID.
func NewDiscordID(id string) (DiscordID, error) {
	d := DiscordID(strings.TrimSpace(id))
	if !d.IsValid() {
		return "", ErrInvalidDiscordID
	}
	return d, nil
}

// uuidRegex matches the internal UUID identifiers used across entities.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// PlayerID represents an internal player identifier (UUID).
type PlayerID string

// IsValid checks if the ID is a well-formed UUID.
func (p PlayerID) IsValid() bool {
	return uuidRegex.MatchString(string(p))
}

// String returns the string representation.
func (p PlayerID) String() string {
	return string(p)
}

// IsEmpty returns true if the ID is empty.
func (p PlayerID) IsEmpty() bool {
	return p == ""
}

// NewPlayerID validates and creates a PlayerID.
func NewPlayerID(id string) (PlayerID, error) {
	p := PlayerID(id)
	if !p.IsValid() {
		return "", WrapError("player", "Validate", ErrInvalidID, "malformed player id", nil)
	}
	return p, nil
}

// EventID represents an internal event identifier (UUID).
type EventID string

// IsValid checks if the ID is a well-formed UUID.
func (e EventID) IsValid() bool {
	return uuidRegex.MatchString(string(e))
}

// String returns the string representation.
func (e EventID) String() string {
	return string(e)
}

// IsEmpty returns true if the ID is empty.
func (e EventID) IsEmpty() bool {
	return e == ""
}

// MatchID represents an internal match identifier (UUID).
type MatchID string

// IsValid checks if the ID is a well-formed UUID.
func (m MatchID) IsValid() bool {
	return uuidRegex.MatchString(string(m))
}

// String returns the string representation.
func (m MatchID) String() string {
	return string(m)
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Elo represents a rating value. Raw elo may drop below the starting value;
// scoring elo is floored at it.
type Elo int

// Int returns the rating as an int.
func (e Elo) Int() int {
	return int(e)
}

// Floor returns the rating floored at the given starting value.
func (e Elo) Floor(starting Elo) Elo {
	if e < starting {
		return starting
	}
	return e
}

// Add applies a signed delta.
func (e Elo) Add(delta int) Elo {
	return Elo(int(e) + delta)
}

// String returns the string representation.
func (e Elo) String() string {
	return fmt.Sprintf("%d", int(e))
}

// Tickets represents a ticket balance or amount.
type Tickets int

// IsDebit returns true if the amount reduces a balance.
func (t Tickets) IsDebit() bool {
	return t < 0
}

// Int returns the amount as an int.
func (t Tickets) Int() int {
	return int(t)
}

// ═══════════════════════════════════════════════════════════════════════════
// Ranking Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a dense-ranked position (1 = best; tied values share a rank).
type Rank int

// RankUnranked marks a player absent from a ranking scope.
const RankUnranked Rank = 0

// IsValid checks that the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// Int returns the rank as an int.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked returns true for players outside the scope.
func (r Rank) IsUnranked() bool {
	return r == RankUnranked
}

// String returns the string representation.
func (r Rank) String() string {
	if r.IsUnranked() {
		return "unranked"
	}
	return fmt.Sprintf("#%d", int(r))
}

// Streak represents a signed win/loss streak:
// positive = consecutive wins, negative = consecutive losses, zero = none.
type Streak int

// Extend folds one match outcome into the streak.
// A win extends a win streak or starts one; same for losses; a draw resets.
func (s Streak) Extend(won, drawn bool) Streak {
	switch {
	case drawn:
		return 0
	case won:
		if s > 0 {
			return s + 1
		}
		return 1
	default:
		if s < 0 {
			return s - 1
		}
		return -1
	}
}

// String returns the string representation ("W3", "L2" or "-").
func (s Streak) String() string {
	switch {
	case s > 0:
		return fmt.Sprintf("W%d", int(s))
	case s < 0:
		return fmt.Sprintf("L%d", -int(s))
	default:
		return "-"
	}
}
