// Package services implements the driving port interfaces.
//
// IngestService turns a raw scripture text into stored chunks, verses and
// embeddings. SearchService ranks those chunks for semantic, lexical and
// hybrid queries. SettingsService layers defaults, the config file and the
// environment into domain.AppSettings.
//
// Services depend only on driven ports; storage and AI providers are adapters.
package services
