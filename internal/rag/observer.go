package rag

import (
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Observer receives progress events from the pipeline stages
type Observer interface {
	FileSkipped(path string, err error)
	FileChunked(path string, pages, chunks int)
	BatchIndexed(batch, total, size int)
	Retrying(op string, attempt int, delay time.Duration, err error)
	Retrieved(query string, results int)
	Fallback(op string, err error)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) FileSkipped(string, error)                  {}
func (NopObserver) FileChunked(string, int, int)               {}
func (NopObserver) BatchIndexed(int, int, int)                 {}
func (NopObserver) Retrying(string, int, time.Duration, error) {}
func (NopObserver) Retrieved(string, int)                      {}
func (NopObserver) Fallback(string, error)                     {}

// LogObserver writes the events to a zerolog logger
type LogObserver struct {
	Logger zerolog.Logger
}

func (o LogObserver) FileSkipped(path string, err error) {
	o.Logger.Warn().Err(err).Str("file", path).Msgf("Skipping %s", filepath.Base(path))
}

func (o LogObserver) FileChunked(path string, pages, chunks int) {
	o.Logger.Info().Str("file", path).Int("pages", pages).Int("chunks", chunks).
		Msgf("Split %s into %d chunks", filepath.Base(path), chunks)
}

func (o LogObserver) BatchIndexed(batch, total, size int) {
	o.Logger.Info().Int("batch", batch).Int("batches", total).Int("size", size).
		Msgf("Indexed batch %d/%d (%d chunks)", batch, total, size)
}

func (o LogObserver) Retrying(op string, attempt int, delay time.Duration, err error) {
	o.Logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying external call")
}

func (o LogObserver) Retrieved(query string, results int) {
	o.Logger.Debug().Str("query", query).Int("results", results).Msg("Retrieved chunks")
}

func (o LogObserver) Fallback(op string, err error) {
	o.Logger.Warn().Err(err).Str("op", op).Msg("Continuing without result")
}
