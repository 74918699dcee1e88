package review

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/prpilot/internal/briefing"
	"github.com/dshills/prpilot/internal/logging"
	"github.com/dshills/prpilot/internal/providers"
)

type repairState int

const (
	stateFirstAnswer repairState = iota
	stateRepairing
	stateAccepted
	stateRejected
)

// resolve turns one request into a validated briefing. A malformed or
// schema-violating first answer gets exactly one repair call; a second
// rejection ends in *UnrecoverableSchemaError.
func (r *run) resolve(ctx context.Context, stage string, req providers.Request, rules briefing.Rules) (*briefing.Briefing, error) {
	var (
		b        *briefing.Briefing
		previous string
		first    error
		last     error
		state    = stateFirstAnswer
	)

	for {
		switch state {
		case stateFirstAnswer:
			resp, err := r.generate(ctx, req)
			if err != nil {
				return nil, err
			}
			b, first = briefing.Decode(resp.Content, rules)
			if first == nil {
				state = stateAccepted
				continue
			}
			logging.L().Warn("model answer rejected, requesting repair",
				zap.String("stage", stage),
				zap.Error(first))
			previous = resp.Content
			state = stateRepairing

		case stateRepairing:
			resp, err := r.generate(ctx, r.prompts.Repair(req, previous, first))
			if err != nil {
				return nil, fmt.Errorf("repair: %w", err)
			}
			b, last = briefing.Decode(resp.Content, rules)
			if last == nil {
				state = stateAccepted
			} else {
				state = stateRejected
			}

		case stateAccepted:
			return b, nil

		case stateRejected:
			return nil, &UnrecoverableSchemaError{Stage: stage, First: first, Last: last}
		}
	}
}

func (r *run) generate(ctx context.Context, req providers.Request) (providers.Response, error) {
	r.calls.Add(1)
	return r.model.Generate(ctx, req)
}
