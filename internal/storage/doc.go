// Package storage is the SQLite-backed TV library: channels, EPG programs,
// recorder schedules and recordings. It implements the data provider
// consumed by the notification core.
package storage
