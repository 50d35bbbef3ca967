package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      source,
                      sample_rate,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    source,
    sample_rate,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    source,
    sample_rate,
    config
FROM sessions
ORDER BY start_time`

	insertFrameSQL = `
INSERT INTO frames (session_id,
                    time_s,
                    sample_offset,
                    bin_width,
                    power)
VALUES (?, ?, ?, ?, ?)`

	selectFramesSQL = `
SELECT
    time_s,
    sample_offset,
    bin_width,
    power
FROM frames
WHERE
    session_id = ?
ORDER BY time_s`

	insertEventSQL = `
INSERT INTO events (session_id,
                    start_s,
                    end_s,
                    freq_low_hz,
                    freq_high_hz,
                    center_freq_hz,
                    bandwidth_hz,
                    peak_snr_db,
                    avg_snr_db,
                    peak_power_db,
                    detection_count,
                    confidence,
                    modulation)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectEventsSQL = `
SELECT
    start_s,
    end_s,
    freq_low_hz,
    freq_high_hz,
    center_freq_hz,
    bandwidth_hz,
    peak_snr_db,
    avg_snr_db,
    peak_power_db,
    detection_count,
    confidence,
    modulation
FROM events
WHERE
    session_id = ?
ORDER BY start_s`
)

//go:embed schema.sql
var schemaSQL string
