package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"time"

	"tml-rank-card/fetcher"
	"tml-rank-card/models"
	"tml-rank-card/publisher"

	"github.com/rs/zerolog/log"
)

// RecordParser turns a report page into records
type RecordParser interface {
	ParseHTML(html string) (models.RecordSet, error)
}

// TextSelector picks the card text from records
type TextSelector interface {
	Select(records models.RecordSet) (string, error)
}

// CardRenderer draws the card and persists it.
// A nil color means the renderer's configured text color.
type CardRenderer interface {
	RenderColor(ctx context.Context, text string, col color.Color) (*models.Artifact, error)
}

// Options holds the report location and artifact retention
type Options struct {
	ReportURL     string
	IDParam       string
	KeepArtifacts bool
}

// Pipeline runs fetch, extract, select, render and publish for one identifier.
// It holds no per-request state and is safe for concurrent use when its stages are.
type Pipeline struct {
	fetcher   fetcher.Fetcher
	parser    RecordParser
	selector  TextSelector
	renderer  CardRenderer
	publisher publisher.Publisher
	opts      Options
}

// Result is what a full run hands back to the caller
type Result struct {
	URL        string
	Text       string
	Records    models.RecordSet
	ArtifactID string
}

// New creates a new Pipeline instance
func New(f fetcher.Fetcher, p RecordParser, s TextSelector, r CardRenderer, pub publisher.Publisher, opts Options) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		parser:    p,
		selector:  s,
		renderer:  r,
		publisher: pub,
		opts:      opts,
	}
}

// Records fetches the report for id and extracts its records
func (p *Pipeline) Records(ctx context.Context, id string) (models.RecordSet, error) {
	reportURL, err := fetcher.ReportURL(p.opts.ReportURL, p.opts.IDParam, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := p.fetcher.Fetch(ctx, reportURL)
	if err != nil {
		return nil, fmt.Errorf("fetch report: %w", err)
	}

	records, err := p.parser.ParseHTML(body)
	if err != nil {
		return nil, fmt.Errorf("extract records: %w", err)
	}

	log.Info().Str("id", id).Int("records", len(records)).Dur("took", time.Since(start)).Msg("Extracted report")
	return records, nil
}

// RenderCard renders the card for id without publishing it.
// The caller owns the returned artifact file; see Discard.
func (p *Pipeline) RenderCard(ctx context.Context, id string) (*models.Artifact, error) {
	return p.RenderCardColor(ctx, id, nil)
}

// RenderCardColor is RenderCard with the text drawn in col
func (p *Pipeline) RenderCardColor(ctx context.Context, id string, col color.Color) (*models.Artifact, error) {
	art, _, _, err := p.renderCard(ctx, id, col)
	return art, err
}

func (p *Pipeline) renderCard(ctx context.Context, id string, col color.Color) (*models.Artifact, models.RecordSet, string, error) {
	records, err := p.Records(ctx, id)
	if err != nil {
		return nil, nil, "", err
	}

	text, err := p.selector.Select(records)
	if err != nil {
		return nil, records, "", fmt.Errorf("select text: %w", err)
	}

	art, err := p.renderer.RenderColor(ctx, text, col)
	if err != nil {
		return nil, records, text, fmt.Errorf("render card: %w", err)
	}
	return art, records, text, nil
}

// Run renders the card for id, publishes it and returns the public link
func (p *Pipeline) Run(ctx context.Context, id string) (*Result, error) {
	art, records, text, err := p.renderCard(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	defer p.Discard(art)

	link, err := p.publisher.Publish(ctx, art.Path)
	if err != nil {
		return nil, fmt.Errorf("publish card: %w", err)
	}

	log.Info().Str("id", id).Str("artifact", art.ID).Str("url", link).Msg("Published card")
	return &Result{
		URL:        link,
		Text:       text,
		Records:    records,
		ArtifactID: art.ID,
	}, nil
}

// Discard removes the artifact file unless artifacts are kept
func (p *Pipeline) Discard(art *models.Artifact) {
	if art == nil || p.opts.KeepArtifacts {
		return
	}
	if err := os.Remove(art.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", art.Path).Msg("Failed to remove artifact")
	}
}
