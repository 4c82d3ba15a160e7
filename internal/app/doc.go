// Package app is the composition root of marketpulse. It turns a loaded
// configuration into a ready pipeline: telemetry, the market-data provider,
// the trading calendar, the transformer, the destination stores and the run
// service, plus the chi router of the trigger server.
//
// Both binaries go through NewApplication. cmd/etl calls RunOnce and exits
// with the outcome; cmd/web calls Run and serves POST /run until interrupted.
package app
