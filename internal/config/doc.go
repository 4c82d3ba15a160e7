// Package config provides centralized configuration management for the ETL.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority), including a local .env file
//	2. A YAML file (marketpulse.yaml or configs/marketpulse.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern MP_<SECTION>_<FIELD>:
//
//	MP_SOURCE_PROVIDER=yahoo
//	MP_SOURCE_TICKERS=AAPL,MSFT,GOOGL
//	MP_SOURCE_LOOKBACK_DAYS=252
//	MP_SINK_TARGETS=sheets,parquet
//	MP_SINK_SPREADSHEET_ID=1AbC...
//	MP_SINK_CREDENTIALS_FILE=/secrets/sa.json
//	MP_LOGGING_LEVEL=debug
//
// # Validation
//
// Load validates field ranges with go-playground/validator and then checks
// that every selected sink target has the settings it needs, so a run never
// starts with a destination it cannot write.
package config
