// Package postgres implements the PostgreSQL persistence layer for
// Arena Tournament Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CLUSTERS AND EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create clusters and events tables
-- Version: 001

CREATE TABLE IF NOT EXISTS clusters (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    number INTEGER NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_cluster_number CHECK (number > 0)
);

CREATE TABLE IF NOT EXISTS events (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    cluster_id UUID NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    scoring_modes TEXT[] NOT NULL,
    score_direction VARCHAR(10) NOT NULL DEFAULT 'higher',
    min_participants INTEGER NOT NULL DEFAULT 2,
    max_participants INTEGER NOT NULL DEFAULT 16,

    -- Welford running moments of the raw-score population (leaderboard mode)
    stat_count BIGINT NOT NULL DEFAULT 0,
    stat_mean DOUBLE PRECISION NOT NULL DEFAULT 0,
    stat_m2 DOUBLE PRECISION NOT NULL DEFAULT 0,

    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_events_cluster_name UNIQUE (cluster_id, name),
    CONSTRAINT valid_direction CHECK (score_direction IN ('higher', 'lower')),
    CONSTRAINT valid_participant_bounds CHECK (min_participants >= 1 AND max_participants >= min_participants)
);

CREATE INDEX IF NOT EXISTS idx_events_cluster_id ON events(cluster_id);
CREATE INDEX IF NOT EXISTS idx_events_active ON events(is_active) WHERE is_active;
`

const migration001Down = `
DROP TABLE IF EXISTS events;
DROP TABLE IF EXISTS clusters;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PLAYERS AND PER-EVENT STATS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create players and player_event_stats tables
-- Version: 002

CREATE TABLE IF NOT EXISTS players (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    discord_id VARCHAR(20) NOT NULL UNIQUE,
    display_name VARCHAR(100) NOT NULL,

    -- Cached aggregates, refreshed by the aggregation step
    final_score INTEGER NOT NULL DEFAULT 1000,
    overall_scoring_elo INTEGER NOT NULL DEFAULT 1000,
    overall_raw_elo INTEGER NOT NULL DEFAULT 1000,

    -- Ticket balance cache; the ledger is the source of truth
    ticket_balance INTEGER NOT NULL DEFAULT 0,

    matches_played INTEGER NOT NULL DEFAULT 0,
    wins INTEGER NOT NULL DEFAULT 0,
    losses INTEGER NOT NULL DEFAULT 0,
    draws INTEGER NOT NULL DEFAULT 0,
    streak INTEGER NOT NULL DEFAULT 0,

    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_ghost BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_ticket_balance CHECK (ticket_balance >= 0),
    CONSTRAINT valid_match_totals CHECK (wins + losses + draws = matches_played)
);

CREATE INDEX IF NOT EXISTS idx_players_discord_id ON players(discord_id);
CREATE INDEX IF NOT EXISTS idx_players_final_score ON players(final_score DESC);
CREATE INDEX IF NOT EXISTS idx_players_ranked ON players(final_score DESC)
    WHERE is_active AND NOT is_ghost AND matches_played > 0;

-- One row per (player, event); the unit of concurrency control.
-- The unique constraint is the final backstop against concurrent
-- first-time participation creating two rows.
CREATE TABLE IF NOT EXISTS player_event_stats (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,

    raw_elo INTEGER NOT NULL DEFAULT 1000,
    scoring_elo INTEGER NOT NULL DEFAULT 1000,

    matches_played INTEGER NOT NULL DEFAULT 0,
    wins INTEGER NOT NULL DEFAULT 0,
    losses INTEGER NOT NULL DEFAULT 0,
    draws INTEGER NOT NULL DEFAULT 0,

    weekly_elo_average DOUBLE PRECISION NOT NULL DEFAULT 0,
    weeks_participated INTEGER NOT NULL DEFAULT 0,
    all_time_elo INTEGER NOT NULL DEFAULT 1000,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_stats_player_event UNIQUE (player_id, event_id),
    CONSTRAINT valid_stats_totals CHECK (wins + losses + draws = matches_played),
    CONSTRAINT valid_weeks CHECK (weeks_participated >= 0)
);

CREATE INDEX IF NOT EXISTS idx_stats_player_id ON player_event_stats(player_id);
CREATE INDEX IF NOT EXISTS idx_stats_event_id ON player_event_stats(event_id);
CREATE INDEX IF NOT EXISTS idx_stats_event_elo ON player_event_stats(event_id, scoring_elo DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS player_event_stats;
DROP TABLE IF EXISTS players;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE MATCHES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create matches, participants and confirmations tables
-- Version: 003

CREATE TABLE IF NOT EXISTS matches (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    mode VARCHAR(20) NOT NULL,
    state VARCHAR(30) NOT NULL DEFAULT 'PENDING',

    -- Active result proposal; NULL columns while PENDING
    proposer_id UUID REFERENCES players(id),
    proposed_placements INTEGER[],
    proposed_at TIMESTAMP WITH TIME ZONE,
    proposal_expires_at TIMESTAMP WITH TIME ZONE,

    -- Digest of the sorted participant set, backs the duplicate guard
    participants_key VARCHAR(64) NOT NULL,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_state CHECK (state IN ('PENDING', 'AWAITING_CONFIRMATION', 'COMPLETED', 'CANCELLED'))
);

CREATE INDEX IF NOT EXISTS idx_matches_event_id ON matches(event_id);
CREATE INDEX IF NOT EXISTS idx_matches_state ON matches(state) WHERE state NOT IN ('COMPLETED', 'CANCELLED');
CREATE INDEX IF NOT EXISTS idx_matches_expiry ON matches(proposal_expires_at)
    WHERE state = 'AWAITING_CONFIRMATION';

-- The final backstop for the duplicate-active-match guard
CREATE UNIQUE INDEX IF NOT EXISTS uq_matches_active_participants
    ON matches(event_id, participants_key)
    WHERE state NOT IN ('COMPLETED', 'CANCELLED');

CREATE TABLE IF NOT EXISTS match_participants (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    match_id UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    team_id VARCHAR(50) NOT NULL DEFAULT '',
    position INTEGER NOT NULL,

    -- Filled on finalization
    placement INTEGER NOT NULL DEFAULT 0,
    rating_before INTEGER NOT NULL DEFAULT 0,
    rating_after INTEGER NOT NULL DEFAULT 0,
    delta INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT uq_participant_match_player UNIQUE (match_id, player_id)
);

CREATE INDEX IF NOT EXISTS idx_participants_match_id ON match_participants(match_id);
CREATE INDEX IF NOT EXISTS idx_participants_player_id ON match_participants(player_id);

CREATE TABLE IF NOT EXISTS match_confirmations (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    match_id UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    status VARCHAR(10) NOT NULL DEFAULT 'pending',
    reason VARCHAR(200) NOT NULL DEFAULT '',
    responded_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT uq_confirmation_match_player UNIQUE (match_id, player_id),
    CONSTRAINT valid_confirmation_status CHECK (status IN ('pending', 'accepted', 'rejected'))
);

CREATE INDEX IF NOT EXISTS idx_confirmations_match_id ON match_confirmations(match_id);
`

const migration003Down = `
DROP TABLE IF EXISTS match_confirmations;
DROP TABLE IF EXISTS match_participants;
DROP TABLE IF EXISTS matches;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE HISTORY, SUBMISSIONS AND LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create rating history, score submissions and ticket ledger
-- Version: 004

-- Append-only: rows are never updated or deleted in normal operation
CREATE TABLE IF NOT EXISTS rating_history (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    source VARCHAR(20) NOT NULL,
    source_id VARCHAR(64) NOT NULL DEFAULT '',
    elo_before INTEGER NOT NULL,
    elo_after INTEGER NOT NULL,
    delta INTEGER NOT NULL,
    k_factor DOUBLE PRECISION NOT NULL DEFAULT 0,
    opponent_id UUID REFERENCES players(id),
    outcome VARCHAR(10) NOT NULL DEFAULT '',
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_history_source CHECK (source IN ('match', 'submission', 'recompute', 'admin'))
);

CREATE INDEX IF NOT EXISTS idx_history_player_id ON rating_history(player_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_history_event_id ON rating_history(event_id, occurred_at DESC);

-- Composite feed order: (occurred_at, source, id) in both directions
CREATE INDEX IF NOT EXISTS idx_history_feed ON rating_history(occurred_at DESC, source, id);

CREATE TABLE IF NOT EXISTS score_submissions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    raw_score DOUBLE PRECISION NOT NULL,
    normalized_elo INTEGER NOT NULL DEFAULT 0,
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_submissions_event_id ON score_submissions(event_id, submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_submissions_player_event ON score_submissions(player_id, event_id);
CREATE INDEX IF NOT EXISTS idx_submissions_feed ON score_submissions(submitted_at DESC, id);

-- Append-only source of truth for ticket balances
CREATE TABLE IF NOT EXISTS ticket_ledger (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    amount INTEGER NOT NULL,
    reason VARCHAR(30) NOT NULL,
    balance_after INTEGER NOT NULL,
    match_id UUID REFERENCES matches(id),
    actor_id UUID REFERENCES players(id),
    note VARCHAR(200) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT nonzero_amount CHECK (amount <> 0),
    CONSTRAINT valid_balance_after CHECK (balance_after >= 0),
    CONSTRAINT valid_reason CHECK (reason IN ('match_reward', 'match_participation', 'admin_grant', 'admin_debit', 'purchase', 'correction'))
);

CREATE INDEX IF NOT EXISTS idx_ledger_player_id ON ticket_ledger(player_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_match_id ON ticket_ledger(match_id) WHERE match_id IS NOT NULL;
`

const migration004Down = `
DROP TABLE IF EXISTS ticket_ledger;
DROP TABLE IF EXISTS score_submissions;
DROP TABLE IF EXISTS rating_history;
`
