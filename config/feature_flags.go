package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports per-user targeting and consistent-hash bucketing so a player
// stays in the same rollout bucket across sessions.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[int64]map[string]bool // discordID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Guild targeting; empty means all guilds
	TargetGuilds []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID int64 // Discord ID

	GuildID string // Guild the interaction came from
	IsAdmin bool   // Is admin user
}

// Predefined feature flag names.
const (
	// === Leaderboard Features ===
	FeatureLeaderboardRankChange = "leaderboard.rank_change" // Show rank changes (+2, -1)
	FeatureLeaderboardGhosts     = "leaderboard.ghosts"      // Explicit ghost-player views
	FeatureLeaderboardCaching    = "leaderboard.caching"     // Redis page cache

	// === Match Features ===
	FeatureMatchTeamMode       = "match.team_mode"       // Team scoring mode
	FeatureMatchAutoExpire     = "match.auto_expire"     // Background proposal expiry sweep
	FeatureMatchDuplicateGuard = "match.duplicate_guard" // Duplicate active match guard

	// === Scoring Features ===
	FeatureScoringWeeklyRollup = "scoring.weekly_rollup" // Weekly Z-score processing
	FeatureScoringRecompute    = "scoring.recompute"     // Debounced full recompute

	// === Ticket Features ===
	FeatureTicketsMatchRewards = "tickets.match_rewards" // Ticket rewards on finalize
	FeatureTicketsLedgerAudit  = "tickets.ledger_audit"  // Periodic integrity sweep

	// === Experimental Features ===
	FeatureExperimentalSeasons = "experimental.seasons" // Seasonal rating resets
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[int64]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureLeaderboardRankChange] = &Feature{
		Name:           FeatureLeaderboardRankChange,
		Description:    "Show rank changes in leaderboard",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardGhosts] = &Feature{
		Name:           FeatureLeaderboardGhosts,
		Description:    "Allow explicit ghost-player leaderboard views",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardCaching] = &Feature{
		Name:           FeatureLeaderboardCaching,
		Description:    "Cache leaderboard pages in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureMatchTeamMode] = &Feature{
		Name:           FeatureMatchTeamMode,
		Description:    "Team scoring mode for supported events",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	ff.features[FeatureMatchAutoExpire] = &Feature{
		Name:           FeatureMatchAutoExpire,
		Description:    "Background sweep reverting expired proposals",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureMatchDuplicateGuard] = &Feature{
		Name:           FeatureMatchDuplicateGuard,
		Description:    "Reject duplicate active matches for the same participants",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureScoringWeeklyRollup] = &Feature{
		Name:           FeatureScoringWeeklyRollup,
		Description:    "Weekly Z-score rollup for leaderboard events",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureScoringRecompute] = &Feature{
		Name:           FeatureScoringRecompute,
		Description:    "Debounced full leaderboard recompute",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureTicketsMatchRewards] = &Feature{
		Name:           FeatureTicketsMatchRewards,
		Description:    "Award tickets to match winners",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureTicketsLedgerAudit] = &Feature{
		Name:           FeatureTicketsLedgerAudit,
		Description:    "Periodic ledger/balance integrity sweep",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalSeasons] = &Feature{
		Name:           FeatureExperimentalSeasons,
		Description:    "Seasonal rating resets",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_MATCH_TEAM_MODE=true
// Example: FEATURE_SCORING_RECOMPUTE=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "match.team_mode" -> "FEATURE_MATCH_TEAM_MODE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != 0 {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check guild targeting
	if len(feature.TargetGuilds) > 0 && ctx != nil && ctx.GuildID != "" {
		guildMatch := false
		for _, g := range feature.TargetGuilds {
			if g == ctx.GuildID {
				guildMatch = true
				break
			}
		}
		if !guildMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != 0 {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID int64, featureName string, percent int) bool {
	// Create a consistent hash for this user+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(strconv.FormatInt(userID, 10)))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a user.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	if len(feature.Variants) == 0 {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(strconv.FormatInt(ctx.UserID, 10)))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID int64, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID int64) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
