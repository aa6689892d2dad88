package generators

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/timeutil"
)

// TimeSeriesGenerator spaces rows by 'step' from 'start' (absolute or relative
// to now, e.g. "-30d"), with optional +/- 'jitter_seconds'.
type TimeSeriesGenerator struct {
	Now func() time.Time
}

func (g *TimeSeriesGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	startStr, ok := ctx.Params["start"].(string)
	if !ok {
		return nil, errors.New("'start' must be a string")
	}
	stepStr, ok := ctx.Params["step"].(string)
	if !ok {
		return nil, errors.New("'step' must be a string")
	}

	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	startTime, err := timeutil.ParseRelativeTime(startStr, now)
	if err != nil {
		return nil, fmt.Errorf("invalid start time: %w", err)
	}

	stepDuration, err := timeutil.ParseDuration(stepStr)
	if err != nil {
		return nil, fmt.Errorf("invalid step duration: %w", err)
	}

	timestamp := startTime.Add(time.Duration(ctx.RowIndex) * stepDuration)

	if jitterRaw, hasJitter := ctx.Params["jitter_seconds"]; hasJitter {
		jitterSeconds := toInt64(jitterRaw)
		if jitterSeconds > 0 {
			jitter := rng.Int63n(jitterSeconds*2+1) - jitterSeconds
			timestamp = timestamp.Add(time.Duration(jitter) * time.Second)
		}
	}

	if ctx.Column.Type == domain.SQLTypeDate {
		return timeutil.TruncateDay(timestamp), nil
	}
	return timestamp, nil
}

func (g *TimeSeriesGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	if !requireParams(spec, "start", "step") {
		return errors.New("time_series requires 'start' and 'step' params")
	}
	startStr, ok := spec.Params["start"].(string)
	if !ok {
		return errors.New("'start' must be a string")
	}
	if _, err := timeutil.ParseRelativeTime(startStr, time.Now()); err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}
	stepStr, ok := spec.Params["step"].(string)
	if !ok {
		return errors.New("'step' must be a string")
	}
	if _, err := timeutil.ParseDuration(stepStr); err != nil {
		return fmt.Errorf("invalid step duration: %w", err)
	}
	if !columnType.IsTemporal() {
		return fmt.Errorf("time_series cannot fill %s columns", columnType)
	}
	return nil
}
