package nutrition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Brownie44l1/food-api/internal/fooddata"
)

// Builder assembles the enriched nutrition table from external food-data
// sources. Primary may be nil (e.g. no USDA key); Fallback is always tried
// when the primary fails or has no match.
type Builder struct {
	Primary    fooddata.Source
	Fallback   fooddata.Source
	Vocabulary []string
	// Delay is slept between consecutive external calls, including the
	// fallback call for the same label, to stay under third-party rate limits.
	Delay time.Duration
}

func NewBuilder(primary, fallback fooddata.Source, delay time.Duration) *Builder {
	return &Builder{
		Primary:    primary,
		Fallback:   fallback,
		Vocabulary: Food101Labels,
		Delay:      delay,
	}
}

// BuildEnriched returns one record per vocabulary label. Lookup failures are
// logged and replaced by a zero-nutrition record, so only context
// cancellation stops the batch early.
func (b *Builder) BuildEnriched(ctx context.Context) (map[string]Record, error) {
	db := make(map[string]Record, len(b.Vocabulary))
	p := &pacer{delay: b.Delay}

	for _, label := range b.Vocabulary {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		facts, err := b.fetch(ctx, p, label)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("nutrition lookup failed, using empty record", "label", label, "error", err)
			db[label] = emptyRecord(label)
			continue
		}

		slog.Debug("nutrition lookup", "label", label, "source", facts.Source, "calories", facts.Calories)
		db[label] = recordFromFacts(label, facts)
	}

	return db, nil
}

func (b *Builder) fetch(ctx context.Context, p *pacer, label string) (*fooddata.Facts, error) {
	query := fooddata.QueryForLabel(label)

	var primaryErr error
	if b.Primary != nil {
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
		facts, err := b.Primary.Lookup(ctx, query)
		if err == nil {
			return facts, nil
		}
		primaryErr = fmt.Errorf("%s: %w", b.Primary.Name(), err)
	}
	if b.Fallback == nil {
		if primaryErr == nil {
			return nil, errors.New("no food data source configured")
		}
		return nil, primaryErr
	}

	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	facts, err := b.Fallback.Lookup(ctx, query)
	if err != nil {
		return nil, errors.Join(primaryErr, fmt.Errorf("%s: %w", b.Fallback.Name(), err))
	}
	return facts, nil
}

func recordFromFacts(label string, facts *fooddata.Facts) Record {
	gi := EstimateGlycemicIndex(label)
	rec := Record{
		Label:          label,
		Calories:       max(facts.Calories, 0),
		Nutrients:      make(map[string]float64, len(facts.Nutrients)),
		GlycemicIndex:  gi,
		PortionSize:    facts.ServingSize,
		Description:    DefaultDescription(fooddata.QueryForLabel(label)),
		DiabetesImpact: DiabetesImpact(gi),
	}
	for k, v := range facts.Nutrients {
		rec.Nutrients[k] = max(v, 0)
	}
	if facts.Name != "" {
		rec.Description = fmt.Sprintf("%s (matched %q from %s)", rec.Description, facts.Name, facts.Source)
	}
	if rec.PortionSize == "" {
		rec.PortionSize = "100g"
	}
	return rec
}

// emptyRecord keeps the curated glycemic estimate, which needs no network.
func emptyRecord(label string) Record {
	gi := EstimateGlycemicIndex(label)
	return Record{
		Label:          label,
		Nutrients:      map[string]float64{},
		GlycemicIndex:  gi,
		PortionSize:    UnknownPortion,
		Description:    DefaultDescription(fooddata.QueryForLabel(label)),
		DiabetesImpact: DiabetesImpact(gi),
	}
}

// pacer spaces external calls delay apart. The first call is not delayed.
type pacer struct {
	delay time.Duration
	calls int
}

func (p *pacer) wait(ctx context.Context) error {
	if p.calls > 0 && p.delay > 0 {
		if err := sleep(ctx, p.delay); err != nil {
			return err
		}
	}
	p.calls++
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
