package tracker

import (
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/kjannette/moverbot/internal/models"
)

type FilterResult struct {
	Accepted      []models.Candidate
	NewlyExcluded []string
}

// PairFor forms the exchange pair name of a base symbol.
func PairFor(base, quote string) string {
	return strings.ToUpper(base) + strings.ToUpper(quote)
}

// Filter narrows ranked candidates to those with a tradable pair that are
// not excluded and not themselves a quote asset. Candidates whose pair is
// missing are reported in NewlyExcluded unless already excluded. Symbols
// are normalized to lower case and the first ranked entry of a symbol
// wins. Filter has no side effects.
func Filter(candidates []models.Candidate, validPairs map[string]struct{}, exclusions ExclusionReader, quote string, quoteAssets []string) FilterResult {
	skip := make(map[string]struct{}, len(quoteAssets)+1)
	skip[normalize(quote)] = struct{}{}
	for _, q := range quoteAssets {
		skip[normalize(q)] = struct{}{}
	}

	normalized := lo.FilterMap(candidates, func(c models.Candidate, _ int) (models.Candidate, bool) {
		c.Symbol = normalize(c.Symbol)
		return c, c.Symbol != ""
	})
	unique := lo.UniqBy(normalized, func(c models.Candidate) string { return c.Symbol })

	var res FilterResult
	for _, c := range unique {
		if _, ok := skip[c.Symbol]; ok {
			continue
		}
		if exclusions != nil && exclusions.Contains(c.Symbol) {
			continue
		}
		if _, ok := validPairs[PairFor(c.Symbol, quote)]; !ok {
			res.NewlyExcluded = append(res.NewlyExcluded, c.Symbol)
			continue
		}
		res.Accepted = append(res.Accepted, c)
	}
	return res
}

// VolumeFloor keeps the candidates whose pair traded at least floor of the
// quote asset over the last 24h. A pair absent from volumes counts as
// below the floor. The dropped symbols are returned but never excluded;
// they come back once their volume recovers.
func VolumeFloor(accepted []models.Candidate, volumes map[string]decimal.Decimal, floor decimal.Decimal, quote string) (kept []models.Candidate, low []string) {
	for _, c := range accepted {
		v, ok := volumes[PairFor(c.Symbol, quote)]
		if !ok || v.LessThan(floor) {
			low = append(low, c.Symbol)
			continue
		}
		kept = append(kept, c)
	}
	return kept, low
}
