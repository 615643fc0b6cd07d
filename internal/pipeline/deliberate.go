package pipeline

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/steward/internal/similarity"
)

// Source is one external reasoning source consulted during
// deliberation. Consult blocks until the source answers or fails; the
// engine imposes no timeout of its own.
type Source interface {
	Name() string
	Consult(ctx context.Context, prompt string) (string, error)
}

// consultSources queries every source concurrently and waits for all
// outcomes. A failed call degrades that source to manual_input_required
// instead of aborting the session; the session proceeds with whatever
// survived.
func consultSources(ctx context.Context, sources []Source, prompt string) []SourceOutcome {
	outcomes := make([]SourceOutcome, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			resp, err := src.Consult(ctx, prompt)
			if err != nil {
				outcomes[i] = SourceOutcome{
					Source: src.Name(),
					Status: "manual_input_required",
					Error:  err.Error(),
				}
				return nil
			}
			outcomes[i] = SourceOutcome{Source: src.Name(), Status: "ok", Response: resp}
			return nil
		})
	}
	g.Wait()
	return outcomes
}

// deliberationAgreement is the mean pairwise similarity of the
// successful responses; zero when fewer than two sources answered.
func deliberationAgreement(outcomes []SourceOutcome) float64 {
	var ok []string
	for _, o := range outcomes {
		if o.Status == "ok" {
			ok = append(ok, o.Response)
		}
	}
	if len(ok) < 2 {
		return 0
	}

	var sum float64
	var pairs int
	for i := range ok {
		for j := i + 1; j < len(ok); j++ {
			sum += similarity.Score(ok[i], ok[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// deliberationPrompt frames the contested claims for the sources.
func deliberationPrompt(intent string, claims []string) string {
	var b strings.Builder
	b.WriteString("Assess the following findings independently. Intent: ")
	b.WriteString(intent)
	for _, c := range claims {
		b.WriteString("\n- ")
		b.WriteString(c)
	}
	return b.String()
}
