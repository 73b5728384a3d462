package timescaledb

const createTableSQL = `
CREATE TABLE IF NOT EXISTS ustar_threshold (
    created_at timestamp WITH TIME ZONE NOT NULL,
    run_id uuid NOT NULL,
    site text NOT NULL,
    year int NOT NULL,
    model text NOT NULL,
    mode text NULL,
    n_boot int NOT NULL,
    threshold float8 NULL,
    threshold_lo float8 NULL,
    threshold_hi float8 NULL,
    sine_offset float8 NULL,
    sine_amplitude float8 NULL,
    sine_phase float8 NULL,
    frac_sig float8 NULL,
    frac_mode_d float8 NULL,
    frac_select float8 NULL,
    failure text NULL,
    vectors bytea NULL,
    PRIMARY KEY (created_at, run_id, site, year, model)
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

const createHypertableSQL = `SELECT create_hypertable('ustar_threshold', 'created_at', if_not_exists => true, chunk_time_interval => INTERVAL '1 year');`

const createSiteIndexSQL = `CREATE INDEX IF NOT EXISTS ustar_threshold_site_year_idx ON ustar_threshold (site, year, created_at DESC);`
